package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jonathan/visa-navigator/internal/auth"
	"github.com/jonathan/visa-navigator/internal/catalog"
	"github.com/jonathan/visa-navigator/internal/localstore"
	"github.com/jonathan/visa-navigator/internal/types"
)

// loadCatalog returns the configured catalog, or the built-in one.
func loadCatalog() (*catalog.Catalog, error) {
	if appConfig.CatalogPath != "" {
		return catalog.Load(appConfig.CatalogPath)
	}
	return catalog.Default()
}

func lookupRoute(id string) (*types.VisaRoute, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	route, ok := cat.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown visa route %q (known: %v)", id, cat.IDs())
	}
	return route, nil
}

func openLocalStore() (*localstore.Store, error) {
	path := appConfig.LocalDBPath
	if path == "" {
		var err error
		if path, err = localstore.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return localstore.Open(path)
}

// newAuthClient returns an auth client with the saved session restored, if any.
func newAuthClient(ctx context.Context, store *localstore.Store) *auth.Client {
	client := auth.NewClient(appConfig.APIBaseURL, auth.WithLogger(logger))
	creds, err := store.LoadCredentials(ctx)
	if errors.Is(err, localstore.ErrNotFound) {
		return client
	}
	if err != nil {
		logger.Warn("failed to load saved session", "error", err)
		return client
	}
	if err := client.SetToken(creds.Email, creds.Token); err != nil {
		logger.Warn("saved session is unreadable", "error", err)
	}
	return client
}

// loadAnswersFile reads a JSON object of question id to answer.
func loadAnswersFile(path string) ([]types.Answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	var raw map[string]types.AnswerValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse answers file %s: %w", path, err)
	}
	answers := make([]types.Answer, 0, len(raw))
	for id, v := range raw {
		answers = append(answers, types.Answer{QuestionID: id, Answer: v})
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}

// checkAnswers rejects the whole file when any answer does not fit route.
func checkAnswers(route *types.VisaRoute, answers []types.Answer) error {
	for _, a := range answers {
		if err := route.CheckAnswer(a.QuestionID, a.Answer); err != nil {
			return fmt.Errorf("invalid answers file: %w", err)
		}
	}
	return nil
}

func routeValues(routes []*types.VisaRoute) []types.VisaRoute {
	out := make([]types.VisaRoute, 0, len(routes))
	for _, r := range routes {
		out = append(out, *r)
	}
	return out
}
