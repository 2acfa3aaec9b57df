// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Inventory looks up stacks and components.
type Inventory interface {
	Stack(ctx context.Context, id string) (*models.Stack, error)
	Component(ctx context.Context, id string) (*models.Component, error)

	// Connected returns the components linked with componentID.
	Connected(ctx context.Context, componentID string) ([]*models.Component, error)
}

// KeyStore resolves service credentials. Missing keys return models.ErrNotFound.
type KeyStore interface {
	ServiceKey(ctx context.Context, name string) (string, error)
}

// Subject is the entity a dump is requested for. Exactly one field is set.
type Subject struct {
	Stack     *models.Stack
	Component *models.Component
}

// StackSubject wraps a stack.
func StackSubject(s *models.Stack) Subject { return Subject{Stack: s} }

// ComponentSubject wraps a component.
func ComponentSubject(c *models.Component) Subject { return Subject{Component: c} }

// Pair is a database component and its optional application peer.
type Pair struct {
	Database    *models.Component
	Application *models.Component
}

// ResolvePair determines the database/application pair of a subject.
func ResolvePair(ctx context.Context, inv Inventory, subject Subject) (Pair, result.Result) {
	switch {
	case subject.Stack != nil:
		return resolveStack(ctx, inv, subject.Stack)
	case subject.Component != nil:
		return resolveComponent(ctx, inv, subject.Component)
	default:
		return Pair{}, result.Failf(result.KindResolution, "dump subject is empty")
	}
}

func resolveStack(ctx context.Context, inv Inventory, stack *models.Stack) (Pair, result.Result) {
	var pair Pair
	for _, id := range stack.ComponentIDs {
		c, err := inv.Component(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return Pair{}, result.Fail(result.KindResolution, "failed to load stack component", err).With("component_id", id)
		}
		switch c.Bundle.Category() {
		case models.CategoryDatabase:
			if pair.Database == nil {
				pair.Database = c
			}
		case models.CategoryApplication:
			if pair.Application == nil {
				pair.Application = c
			}
		}
	}

	if pair.Database == nil {
		return Pair{}, result.Failf(result.KindResolution, "stack %s has no database component", stack.MachineName)
	}
	if pair.Application == nil {
		return Pair{}, result.Failf(result.KindResolution, "stack %s has no application component", stack.MachineName)
	}
	return pair, result.OK("resolved stack components", nil)
}

func resolveComponent(ctx context.Context, inv Inventory, c *models.Component) (Pair, result.Result) {
	switch c.Bundle.Category() {
	case models.CategoryDatabase:
		app, err := connectedOf(ctx, inv, c, models.CategoryApplication)
		if err != nil {
			return Pair{}, result.Fail(result.KindResolution, "failed to look up connected components", err)
		}
		return Pair{Database: c, Application: app}, result.OK("resolved database component", nil).
			With("has_application", app != nil)

	case models.CategoryApplication:
		db, err := connectedOf(ctx, inv, c, models.CategoryDatabase)
		if err != nil {
			return Pair{}, result.Fail(result.KindResolution, "failed to look up connected components", err)
		}
		if db == nil {
			return Pair{}, result.Failf(result.KindResolution,
				"application %s has no connected database to dump", c.MachineName)
		}
		return Pair{Database: db, Application: c}, result.OK("resolved application component", nil)

	default:
		return Pair{}, result.Fail(result.KindResolution,
			fmt.Sprintf("unsupported component type %q for database dump", c.Bundle), nil).
			With("bundle", string(c.Bundle))
	}
}

func connectedOf(ctx context.Context, inv Inventory, c *models.Component, want models.Category) (*models.Component, error) {
	peers, err := inv.Connected(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range peers {
		if p.Bundle.Category() == want {
			return p, nil
		}
	}
	return nil, nil //nolint:nilnil // no peer of that category
}
