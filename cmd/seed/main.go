// Package main seeds the catalog with a small sample library.
//
// It reads the same flags and environment as the server, so it writes to
// whichever store the server would open:
//
//	METADATA_PATH=~/CatalogServer/data go run ./cmd/seed
//	go run ./cmd/seed -store sqlite
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/sqlite"
)

const seedUsername = "librarian"

type sampleBook struct {
	title     string
	author    string
	published int
	genres    []string
}

var sampleBooks = []sampleBook{
	{"Clean Code", "Robert Martin", 2008, []string{"refactoring"}},
	{"Agile software development", "Robert Martin", 2002, []string{"agile", "patterns", "design"}},
	{"Refactoring, edition 2", "Martin Fowler", 2018, []string{"refactoring"}},
	{"Refactoring to patterns", "Joshua Kerievsky", 2008, []string{"refactoring", "patterns"}},
	{"Practical Object-Oriented Design, An Agile Primer Using Ruby", "Sandi Metz", 2012, []string{"refactoring", "design"}},
	{"Crime and punishment", "Fyodor Dostoevsky", 1866, []string{"classic", "crime"}},
	{"Demons", "Fyodor Dostoevsky", 1872, []string{"classic", "revolution"}},
}

var birthYears = map[string]int{
	"Robert Martin":     1952,
	"Martin Fowler":     1963,
	"Fyodor Dostoevsky": 1821,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
		Service:     "seed",
	})

	if err := os.MkdirAll(cfg.Metadata.BasePath, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	repo, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()

	existing, err := repo.CountBooks(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		fmt.Printf("Catalog already holds %d books, nothing to do\n", existing)
		return nil
	}

	viewer, err := seedUser(ctx, repo)
	if err != nil {
		return err
	}

	bus := events.NewBus(events.Options{}, log.Logger)
	defer bus.Shutdown(ctx) //nolint:errcheck // no subscribers to wait on

	catalog := service.NewCatalogService(repo, bus, log.Logger)

	for _, b := range sampleBooks {
		book, err := catalog.AddBook(ctx, viewer, service.AddBookRequest{
			Title:     b.title,
			Author:    b.author,
			Published: b.published,
			Genres:    b.genres,
		})
		if err != nil {
			return fmt.Errorf("add %q: %w", b.title, err)
		}
		fmt.Printf("  + %s (%s, %d)\n", book.Title, book.Author.Name, book.Published)
	}

	for name, year := range birthYears {
		if _, err := catalog.EditAuthor(ctx, viewer, name, year); err != nil {
			return fmt.Errorf("set birth year of %s: %w", name, err)
		}
	}

	fmt.Printf("\nSeeded %d books. Log in as %q with the shared password.\n", len(sampleBooks), seedUsername)
	return nil
}

func openStore(cfg *config.Config, log *logger.Logger) (store.Repository, error) {
	if cfg.Store.Backend == config.BackendSQLite {
		return sqlite.Open(cfg.DatabasePath(), log.Logger)
	}
	return store.New(cfg.DatabasePath(), log.Logger)
}

func seedUser(ctx context.Context, repo store.Repository) (*domain.User, error) {
	user, err := repo.FindUserByUsername(ctx, seedUsername)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return repo.CreateUser(ctx, &domain.User{
		Username:      seedUsername,
		FavoriteGenre: "refactoring",
	})
}
