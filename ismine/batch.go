// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ismine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/btcsuite/ismine/keystore"
	"golang.org/x/sync/errgroup"
)

// ClassifyScripts classifies every script against s in parallel.  The
// result at index i is the classification of scripts[i].  The only error
// returned is the context's, when it is done before the batch completes.
func ClassifyScripts(ctx context.Context, s keystore.Store,
	scripts [][]byte) ([]Ownership, error) {

	results := make([]Ownership, len(scripts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range scripts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = IsMine(s, scripts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Summary counts classifications by category.
type Summary [numOwnership]int

// Summarize counts the classifications.
func Summarize(results []Ownership) Summary {
	var sum Summary
	for _, o := range results {
		if o < numOwnership {
			sum[o]++
		}
	}
	return sum
}

// Count returns the number of classifications of category o.
func (s *Summary) Count(o Ownership) int {
	if o >= numOwnership {
		return 0
	}
	return s[o]
}

// String returns a one line rendering of the counts.
func (s *Summary) String() string {
	return fmt.Sprintf("%v=%d %v=%d %v=%d %v=%d",
		Spendable, s[Spendable], WatchOnly, s[WatchOnly],
		MultiSigParticipant, s[MultiSigParticipant],
		NoInterest, s[NoInterest])
}
