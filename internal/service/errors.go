package service

import (
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// relabel rewrites a BAD_USER_INPUT error from the store with the message
// and argument names of the operation that triggered it. Store field names
// missing from argNames are kept as they are. Any other error is returned
// unchanged.
func relabel(err error, message string, argNames map[string]string) error {
	var domainErr *domainerrors.Error
	if !domainerrors.As(err, &domainErr) || domainErr.Code != domainerrors.CodeBadUserInput {
		return err
	}

	args := make([]string, 0, len(domainErr.InvalidArgs))
	for _, a := range domainErr.InvalidArgs {
		if mapped, ok := argNames[a]; ok {
			a = mapped
		}
		args = append(args, a)
	}

	return domainerrors.ValidationFailure(message, args...).
		WithDetails(domainErr.Details).
		WithCause(err)
}
