package threat

import (
	"math"
	"math/rand/v2"
	"sort"

	"socsim/internal/model"
)

// classProfile shapes the synthetic training draw for one threat class. The
// destination-port feature clusters around the class's signature port and the
// severity feature around its typical severity; the remaining features are
// noise, matching what the generator produces.
type classProfile struct {
	destPortMean float64
	destPortStd  float64
	severityMean float64
}

var trainingProfiles = map[model.ThreatLabel]classProfile{
	model.LabelBenign:          {0.08, 0.04, 0.2},
	model.LabelBruteForce:      {0.022, 0.01, 2.1},
	model.LabelSQLInjection:    {0.08, 0.02, 1.8},
	model.LabelRansomware:      {0.445, 0.05, 2.8},
	model.LabelDDoS:            {0.053, 0.03, 2.5},
	model.LabelLateralMovement: {0.3389, 0.02, 2.3},
	model.LabelDataExfil:       {0.443, 0.02, 2.0},
	model.LabelPhishing:        {0.025, 0.01, 1.5},
	model.LabelZeroDay:         {0.808, 0.10, 2.9},
}

// SynthesizeTrainingSet draws perClass labelled feature vectors for every
// class in the taxonomy. Class indices follow model.ThreatLabels.
func SynthesizeTrainingSet(rng *rand.Rand, perClass int) ([]FeatureVector, []int) {
	samples := make([]FeatureVector, 0, perClass*len(model.ThreatLabels))
	classes := make([]int, 0, cap(samples))
	for idx, label := range model.ThreatLabels {
		p := trainingProfiles[label]
		for i := 0; i < perClass; i++ {
			sev := p.severityMean + rng.NormFloat64()*0.5
			if sev < 0 {
				sev = 0
			}
			if sev > 3 {
				sev = 3
			}
			samples = append(samples, FeatureVector{
				math.Abs(p.destPortMean + rng.NormFloat64()*p.destPortStd),
				rng.Float64(),
				float64(rng.IntN(5)),
				math.Abs(0.3 + rng.NormFloat64()*0.15),
				sev,
			})
			classes = append(classes, idx)
		}
	}
	return samples, classes
}

// TrainAnomalyModel fits the gaussian envelope on the given samples, normally
// the benign class only. The threshold is placed so roughly the contamination
// fraction of the training set falls outside the envelope.
func TrainAnomalyModel(samples []FeatureVector, contamination float64) *AnomalyModel {
	if len(samples) == 0 {
		return nil
	}
	if contamination < 0 {
		contamination = 0
	}
	if contamination > 0.5 {
		contamination = 0.5
	}
	n := float64(len(samples))

	m := &AnomalyModel{}
	for _, s := range samples {
		for i := 0; i < FeatureCount; i++ {
			m.Mean[i] += s[i]
		}
	}
	for i := range m.Mean {
		m.Mean[i] /= n
	}
	for _, s := range samples {
		for i := 0; i < FeatureCount; i++ {
			d := s[i] - m.Mean[i]
			m.Std[i] += d * d
		}
	}
	for i := range m.Std {
		m.Std[i] = math.Sqrt(m.Std[i] / n)
	}

	dists := make([]float64, 0, len(samples))
	for _, s := range samples {
		var sum float64
		for i := 0; i < FeatureCount; i++ {
			std := m.Std[i]
			if std == 0 {
				std = 1
			}
			d := (s[i] - m.Mean[i]) / std
			sum += d * d
		}
		dists = append(dists, sum/FeatureCount)
	}
	sort.Float64s(dists)
	cut := int(float64(len(dists)) * (1 - contamination))
	if cut >= len(dists) {
		cut = len(dists) - 1
	}
	m.Threshold = dists[cut]
	return m
}

// TrainClassifier fits one centroid per class as the mean of that class's
// samples. Classes with no samples keep the zero centroid.
func TrainClassifier(samples []FeatureVector, classes []int, numClasses int) *ClassifierModel {
	if numClasses <= 0 || len(samples) == 0 || len(samples) != len(classes) {
		return nil
	}
	centroids := make([]FeatureVector, numClasses)
	counts := make([]float64, numClasses)
	for k, s := range samples {
		c := classes[k]
		if c < 0 || c >= numClasses {
			continue
		}
		counts[c]++
		for i := 0; i < FeatureCount; i++ {
			centroids[c][i] += s[i]
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for i := 0; i < FeatureCount; i++ {
			centroids[c][i] /= counts[c]
		}
	}
	return &ClassifierModel{Centroids: centroids}
}
