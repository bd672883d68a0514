package scoring

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds the number of leads scored at once.
const batchConcurrency = 8

// BatchInput pairs a lead id with its extracted features.
type BatchInput struct {
	LeadID   string
	Features LeadFeatures
}

// ScoreBatch scores each input independently against the same model and
// returns results in input order. Score is pure, so the leads run in
// parallel with no cross-lead state.
func ScoreBatch(ctx context.Context, inputs []BatchInput, model ModelMetadata) ([]Prediction, error) {
	results := make([]Prediction, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Score(input.LeadID, input.Features, model)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
