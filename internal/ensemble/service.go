package ensemble

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"alphasmith/internal/domain"
)

// AccuracySource supplies each model's registered validation accuracy by
// registry key. Missing keys weigh zero; a nil source makes weighted mode
// behave exactly like average mode.
type AccuracySource interface {
	Accuracy(ctx context.Context, key string) (float64, bool)
}

// Config fixes the fusion mode and the tier/direction thresholds. The
// threshold values are policy, not model truth: the defaults mirror common
// practice, not an optimum.
type Config struct {
	Mode            domain.FusionMode
	HighThreshold   float64
	MediumThreshold float64
	LongThreshold   float64
	ShortThreshold  float64
}

// Service fuses per-model results into one prediction. Output is fully
// deterministic for a given set of inputs regardless of their order.
type Service struct {
	weights AccuracySource
	cfg     Config
}

func NewService(weights AccuracySource, cfg Config) *Service {
	if !cfg.Mode.Valid() {
		cfg.Mode = domain.FusionWeighted
	}
	if cfg.HighThreshold <= 0.5 || cfg.HighThreshold >= 1 {
		cfg.HighThreshold = 0.60
	}
	if cfg.MediumThreshold < 0.5 || cfg.MediumThreshold >= cfg.HighThreshold {
		cfg.MediumThreshold = 0.50
	}
	if cfg.LongThreshold <= 0.5 || cfg.LongThreshold >= 1 {
		cfg.LongThreshold = 0.55
	}
	if cfg.ShortThreshold <= 0 || cfg.ShortThreshold >= 0.5 {
		cfg.ShortThreshold = 0.45
	}
	return &Service{weights: weights, cfg: cfg}
}

// Input is one symbol's fusion request: however many model results
// succeeded, plus the pricing context they share.
type Input struct {
	Symbol      string
	AsOf        time.Time
	Price       float64
	HorizonDays int
	Results     []domain.ModelResult
}

// Fuse combines the model results. One or two missing sub-models degrade
// the fusion; zero results is the only failure.
func (s *Service) Fuse(ctx context.Context, in Input) (*domain.EnsemblePrediction, error) {
	if len(in.Results) == 0 {
		return nil, fmt.Errorf("fuse %s: %w", in.Symbol, domain.ErrNoModelResults)
	}

	results := append([]domain.ModelResult(nil), in.Results...)
	sort.Slice(results, func(i, j int) bool { return results[i].Kind < results[j].Kind })

	var fused, upProb float64
	switch s.cfg.Mode {
	case domain.FusionVoting:
		fused, upProb = voteFusion(results)
	case domain.FusionAverage:
		fused = averageFusion(results)
		upProb = fused
	default:
		fused = s.weightedFusion(ctx, in.HorizonDays, results)
		upProb = fused
	}
	fused = clamp01(fused)
	upProb = clamp01(upProb)

	return &domain.EnsemblePrediction{
		Symbol:        in.Symbol,
		AsOf:          domain.TradingDay(in.AsOf),
		TargetDate:    domain.AddTradingDays(in.AsOf, in.HorizonDays),
		HorizonDays:   in.HorizonDays,
		Price:         in.Price,
		Models:        results,
		Probability:   fused,
		UpProbability: upProb,
		Consistency:   consistency(results),
		Confidence:    s.confidence(fused),
		Direction:     s.direction(upProb),
		Mode:          s.cfg.Mode,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func averageFusion(results []domain.ModelResult) float64 {
	sum := 0.0
	for _, r := range results {
		sum += r.Probability
	}
	return sum / float64(len(results))
}

// weightedFusion weighs each probability by its model's registered
// accuracy, renormalized; with no usable weights it degrades to the plain
// average.
func (s *Service) weightedFusion(ctx context.Context, horizonDays int, results []domain.ModelResult) float64 {
	weightSum := 0.0
	weighted := 0.0
	for _, r := range results {
		w := 0.0
		if s.weights != nil {
			if acc, ok := s.weights.Accuracy(ctx, domain.RegistryKey(r.Kind, horizonDays)); ok && acc > 0 {
				w = acc
			}
		}
		weighted += w * r.Probability
		weightSum += w
	}
	if weightSum <= 0 {
		return averageFusion(results)
	}
	return weighted / weightSum
}

// voteFusion reports the majority class's share of the vote as the fused
// probability, plus an up-class view of it for direction mapping. A split
// vote has no majority and lands on 0.5 either way.
func voteFusion(results []domain.ModelResult) (fused, upProb float64) {
	ups := 0
	for _, r := range results {
		if r.Class == 1 {
			ups++
		}
	}
	n := len(results)
	downs := n - ups
	switch {
	case ups > downs:
		fused = float64(ups) / float64(n)
		return fused, fused
	case downs > ups:
		fused = float64(downs) / float64(n)
		return fused, 1 - fused
	default:
		return 0.5, 0.5
	}
}

// consistency is the share of sub-models agreeing with the plurality class,
// as a rounded percentage: 100/67/33 with three results, 100/50 with two,
// 100 with one.
func consistency(results []domain.ModelResult) int {
	counts := map[int]int{}
	for _, r := range results {
		counts[r.Class]++
	}
	most := 0
	for _, c := range counts {
		if c > most {
			most = c
		}
	}
	return int(math.Round(100 * float64(most) / float64(len(results))))
}

func (s *Service) confidence(fused float64) domain.Confidence {
	switch {
	case fused > s.cfg.HighThreshold:
		return domain.ConfidenceHigh
	case fused > s.cfg.MediumThreshold:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func (s *Service) direction(upProb float64) domain.SignalDirection {
	if upProb > s.cfg.LongThreshold {
		return domain.DirectionLong
	}
	if upProb < s.cfg.ShortThreshold {
		return domain.DirectionShort
	}
	return domain.DirectionHold
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
