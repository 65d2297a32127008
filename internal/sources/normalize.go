package sources

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"nightmap/internal/domain/shared"
	"nightmap/internal/domain/venues"

	"go.uber.org/zap"
)

// accept cleans and validates v, logging and dropping it when invalid.
func accept(v venues.Venue, region *venues.Region, logger *zap.SugaredLogger) (venues.Venue, bool) {
	v.Clean()
	if err := v.Validate(region); err != nil {
		logger.Infow("dropping provider record",
			"source", v.Source,
			"external_id", v.ExternalID,
			"code", shared.CodeOf(err),
			"error", err.Error(),
		)
		return v, false
	}
	return v, true
}

func logFetchFailure(logger *zap.SugaredLogger, source venues.Source, stage string, err error) {
	logger.Warnw("provider fetch failed",
		"source", source,
		"stage", stage,
		"code", shared.CodeOf(err),
		"error", err.Error(),
	)
}

// flexFloat decodes numbers that some providers send as strings.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// flexInt decodes integers that some providers send as strings.
type flexInt struct {
	Value *int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var num json.Number
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	num = json.Number(strings.Trim(s, `"`))
	v, err := num.Int64()
	if err != nil {
		return err
	}
	n := int(v)
	f.Value = &n
	return nil
}

// leadingPriceLevel reads "$$ - $$$" style ranges as their lower bound.
func leadingPriceLevel(s string) *venues.PriceLevel {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	if p, ok := venues.ParsePriceLevel(fields[0]); ok {
		return &p
	}
	return nil
}

func priceFromInt(n *int) *venues.PriceLevel {
	if n == nil {
		return nil
	}
	if p, ok := venues.PriceLevelFromInt(*n); ok {
		return &p
	}
	return nil
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// missingCoordinates yields a pair Validate always rejects.
func missingCoordinates() (float64, float64) {
	return math.NaN(), math.NaN()
}
