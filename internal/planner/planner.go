// Package planner talks to the reasoning model. It decomposes queries
// into subqueries, reflects on gathered evidence, and produces final
// answers through a tag-based output protocol.
package planner

import (
	"context"
	"errors"
)

// Sentinel errors for planner operations.
var (
	// ErrInvalidConfig indicates invalid planner configuration.
	ErrInvalidConfig = errors.New("invalid planner configuration")

	// ErrEmptyQuery indicates an empty input query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyResponse indicates the model returned no content.
	ErrEmptyResponse = errors.New("model returned empty response")
)

// Decomposition is the planner's breakdown of a research query.
type Decomposition struct {
	// Subqueries are the focused questions to research next.
	Subqueries []string

	// Links are URLs the planner wants fetched directly.
	Links []string
}

// Reflection is the planner's judgment of the evidence so far.
type Reflection struct {
	// Converged reports whether the evidence suffices to answer.
	Converged bool

	// Answer is the model's answer when converged.
	Answer string

	// Reasoning explains the judgment.
	Reasoning string

	// Citations lists the sources the answer relies on.
	Citations []string

	// Suggestions are follow-up subqueries when not converged.
	Suggestions []string
}

// Planner is the reasoning model interface.
type Planner interface {
	// Decompose breaks a research query into subqueries and links.
	Decompose(ctx context.Context, query string) (Decomposition, error)

	// Reflect judges whether the evidence answers the query and, if
	// not, proposes follow-up subqueries.
	Reflect(ctx context.Context, query, evidence string) (Reflection, error)

	// FinalAnswer synthesizes the final answer from the evidence.
	FinalAnswer(ctx context.Context, query, evidence string) (string, error)

	// Summarize condenses content with respect to the query.
	Summarize(ctx context.Context, query, content string) (string, error)
}
