package model

import "alphasmith/internal/domain"

// PolicyOverride is a partial override of one registry key's boosting
// parameters; zero fields keep the built-in value.
type PolicyOverride struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

// basePolicy is the per-kind starting point before horizon scaling. The
// kinds differ on purpose: xgboost is the balanced default, gradboost
// trades depth for more rounds, deepboost grows fewer but deeper trees.
func basePolicy(kind domain.ModelKind) TrainOptions {
	switch kind {
	case domain.KindGradBoost:
		return TrainOptions{Rounds: 80, LearningRate: 0.06, MaxDepth: 3}
	case domain.KindDeepBoost:
		return TrainOptions{Rounds: 40, LearningRate: 0.05, MaxDepth: 6}
	default:
		return TrainOptions{Rounds: 60, LearningRate: 0.08, MaxDepth: 4}
	}
}

// resolvePolicy applies horizon scaling and any configured override. Longer
// horizons keep the same sample count while their labels get noisier, so
// capacity shrinks as the horizon grows: fewer rounds, a lower learning
// rate, and past a month also shallower trees.
func resolvePolicy(kind domain.ModelKind, horizonDays int, overrides map[string]PolicyOverride) TrainOptions {
	o := basePolicy(kind)
	switch {
	case horizonDays >= 20:
		o.Rounds = o.Rounds * 6 / 10
		o.LearningRate *= 0.75
		o.MaxDepth--
	case horizonDays >= 5:
		o.Rounds = o.Rounds * 8 / 10
		o.LearningRate *= 0.9
	}
	if o.Rounds < 10 {
		o.Rounds = 10
	}
	if o.MaxDepth < 2 {
		o.MaxDepth = 2
	}
	if o.LearningRate < 0.01 {
		o.LearningRate = 0.01
	}

	if ov, ok := overrides[domain.RegistryKey(kind, horizonDays)]; ok {
		if ov.Rounds > 0 {
			o.Rounds = ov.Rounds
		}
		if ov.LearningRate > 0 {
			o.LearningRate = ov.LearningRate
		}
		if ov.MaxDepth > 0 {
			o.MaxDepth = ov.MaxDepth
		}
	}
	return o
}
