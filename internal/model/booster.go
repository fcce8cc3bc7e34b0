package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"

	"alphasmith/internal/domain"
)

// TrainOptions are the boosting parameters shared by all three model kinds.
type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

type boosterBlob struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Booster wraps one fitted gradient-boosting classifier. The kind selects
// the underlying boosting flavor; the calling contract is identical across
// kinds.
type Booster struct {
	kind  domain.ModelKind
	names []string
	boost *boo.MultiClass
}

// TrainBooster fits a binary classifier on time-ordered samples. Labels must
// contain both classes; the caller filters undefined rows beforehand.
func TrainBooster(kind domain.ModelKind, samples [][]float64, labels []int, featureNames []string, opts TrainOptions) (*Booster, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	classSet := make(map[int]struct{}, 2)
	for _, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("label %d outside {0,1}", y)
		}
		classSet[y] = struct{}{}
	}
	if len(classSet) < 2 {
		return nil, errors.New("training labels hold a single class")
	}
	if len(featureNames) != len(samples[0]) {
		return nil, fmt.Errorf("%d feature names for %d columns", len(featureNames), len(samples[0]))
	}

	o := boosterOptions(kind, opts)
	data := &utils.DataBunch{
		Data:   samples,
		Labels: append([]int(nil), labels...),
		Keys:   featureNames,
	}
	m := boo.NewMultiClass(data, o)
	if m == nil {
		return nil, fmt.Errorf("fit %s model", kind)
	}
	return &Booster{
		kind:  kind,
		names: append([]string(nil), featureNames...),
		boost: m,
	}, nil
}

func boosterOptions(kind domain.ModelKind, opts TrainOptions) *boo.Options {
	var o *boo.Options
	if kind == domain.KindGradBoost {
		o = boo.DefaultGOptions()
	} else {
		o = boo.DefaultXOptions()
	}
	if opts.Rounds > 0 {
		o.Rounds = opts.Rounds
	}
	if opts.LearningRate > 0 {
		o.LearningRate = opts.LearningRate
	}
	if opts.MaxDepth > 0 {
		o.MaxDepth = opts.MaxDepth
	}
	o.Verbose = false
	o.EarlyStop = 0
	return o
}

func (b *Booster) Kind() domain.ModelKind { return b.kind }

func (b *Booster) FeatureNames() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// PredictProb returns the probability of the up class, clamped to [0,1].
func (b *Booster) PredictProb(sample []float64) float64 {
	if b == nil || b.boost == nil {
		return 0.5
	}
	probs := b.boost.PredictSingle(sample)
	labels := b.boost.ClassLabels()
	for i := range labels {
		if labels[i] == 1 {
			return clamp01(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return clamp01(probs[len(probs)-1])
}

// PredictClass returns the predicted class and the up-class probability.
func (b *Booster) PredictClass(sample []float64) (int, float64) {
	p := b.PredictProb(sample)
	if p >= 0.5 {
		return 1, p
	}
	return 0, p
}

func (b *Booster) MarshalBinary() ([]byte, error) {
	if b == nil || b.boost == nil {
		return nil, errors.New("nil booster")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(b.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(boosterBlob{
		FeatureNames: b.names,
		ModelText:    buf.String(),
	})
}

// UnmarshalBooster restores a booster persisted by MarshalBinary. The kind
// is carried by the surrounding artifact, not the blob.
func UnmarshalBooster(kind domain.ModelKind, blob []byte) (*Booster, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty booster blob")
	}
	var raw boosterBlob
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	m, err := boo.UnJSONMultiClass(bufio.NewReader(bytes.NewReader([]byte(raw.ModelText))))
	if err != nil {
		return nil, err
	}
	return &Booster{
		kind:  kind,
		names: append([]string(nil), raw.FeatureNames...),
		boost: m,
	}, nil
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
