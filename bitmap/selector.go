package bitmap

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/rules"
)

// Service is the slice of the bitmap client the selector depends on.
type Service interface {
	GetBitmapsExact(ctx context.Context, receiverIDs []string, blockDate string) ([]Row, error)
	GetBitmapsWildcard(ctx context.Context, accountPattern, blockDate string) ([]Row, error)
}

// Selector narrows a height range to the blocks that may hold receipts for a
// given account pattern, one bitmap day at a time.
type Selector struct {
	service Service
	logger  *zap.Logger
}

// NewSelector creates a selector over the given bitmap service.
func NewSelector(service Service, logger *zap.Logger) *Selector {
	return &Selector{service: service, logger: logger}
}

// Heights returns the sorted, deduplicated candidate block heights in
// [startBlock, endBlock] for the pattern, covering the UTC dates
// [startDate, endDate]. A day with no bitmap rows contributes zero heights.
// When the bitmap service is unavailable the error wraps
// ErrServiceUnavailable and the caller falls back to scanning every height;
// correctness is preserved either way.
func (s *Selector) Heights(ctx context.Context, pattern string, startBlock, endBlock uint64, startDate, endDate time.Time) ([]uint64, error) {
	exact := !rules.HasWildcards(pattern)

	var heights []uint64
	for day := startDate.UTC().Truncate(24 * time.Hour); !day.After(endDate); day = day.AddDate(0, 0, 1) {
		blockDate := day.Format("2006-01-02")

		var rows []Row
		var err error
		if exact {
			rows, err = s.service.GetBitmapsExact(ctx, []string{pattern}, blockDate)
		} else {
			rows, err = s.service.GetBitmapsWildcard(ctx, pattern, blockDate)
		}
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			decoded, err := DecodeBase64(row.Bitmap, row.FirstBlockHeight)
			if err != nil {
				s.logger.Error("skipping undecodable bitmap row",
					zap.String("block_date", blockDate),
					zap.Uint64("first_block_height", row.FirstBlockHeight),
					zap.Error(err),
				)
				continue
			}
			for _, h := range decoded {
				if h >= startBlock && h <= endBlock {
					heights = append(heights, h)
				}
			}
		}
	}

	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return dedupe(heights), nil
}

// dedupe compacts a sorted slice in place.
func dedupe(sorted []uint64) []uint64 {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, h := range sorted[1:] {
		if h != out[len(out)-1] {
			out = append(out, h)
		}
	}
	return out
}
