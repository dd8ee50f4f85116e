// Package main dumps a read-only summary of a Badger catalog database.
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/catalog-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/CatalogServer/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	authors := make(map[string]domain.Author)
	if err := scan(db, "author:", func(a domain.Author) { authors[a.ID] = a }); err != nil {
		log.Fatalf("Error reading authors: %v", err)
	}

	perAuthor := make(map[string]int)
	genres := make(map[string]int)
	bookCount := 0
	err = scan(db, "book:", func(b domain.Book) {
		bookCount++
		perAuthor[b.AuthorID]++
		for _, g := range b.Genres {
			genres[g]++
		}
		if bookCount <= 5 {
			name := "(missing author)"
			if a, ok := authors[b.AuthorID]; ok {
				name = a.Name
			}
			fmt.Printf("Book: %s\n", b.Title)
			fmt.Printf("  ID: %s\n", b.ID)
			fmt.Printf("  Author: %s\n", name)
			fmt.Printf("  Published: %d\n", b.Published)
			fmt.Printf("  Genres: %s\n", strings.Join(b.Genres, ", "))
			fmt.Println()
		}
	})
	if err != nil {
		log.Fatalf("Error reading books: %v", err)
	}

	userCount := 0
	if err := scan(db, "user:", func(domain.User) { userCount++ }); err != nil {
		log.Fatalf("Error reading users: %v", err)
	}

	orphans := 0
	for authorID, n := range perAuthor {
		if _, ok := authors[authorID]; !ok {
			orphans += n
		}
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total books: %d\n", bookCount)
	fmt.Printf("Total authors: %d\n", len(authors))
	fmt.Printf("Total users: %d\n", userCount)
	fmt.Printf("Books with a missing author: %d\n", orphans)

	if len(genres) > 0 {
		names := make([]string, 0, len(genres))
		for g := range genres {
			names = append(names, g)
		}
		sort.Strings(names)
		fmt.Println("Genres:")
		for _, g := range names {
			fmt.Printf("  %s: %d\n", g, genres[g])
		}
	}
}

// scan decodes every document under prefix, skipping secondary index keys.
func scan[T any](db *badger.DB, prefix string, fn func(T)) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			if strings.HasPrefix(string(item.Key()[len(prefix):]), "idx:") {
				continue
			}

			err := item.Value(func(val []byte) error {
				var doc T
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				fn(doc)
				return nil
			})
			if err != nil {
				log.Printf("Error reading %s: %v", item.Key(), err)
			}
		}
		return nil
	})
}
