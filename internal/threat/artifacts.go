package threat

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"

	"socsim/internal/config"
)

// AnomalyModel is a trained gaussian-envelope detector serialized with gob.
// Its decision function is the margin between the configured threshold and
// the normalized distance of a vector from the training mean: positive means
// inlier, negative means outlier, mirroring isolation-forest conventions.
type AnomalyModel struct {
	Mean      FeatureVector
	Std       FeatureVector
	Threshold float64
}

// Decision returns the continuous decision value and the outlier verdict.
func (m *AnomalyModel) Decision(fv FeatureVector) (float64, bool) {
	var sum float64
	for i := 0; i < FeatureCount; i++ {
		std := m.Std[i]
		if std == 0 {
			std = 1
		}
		d := (fv[i] - m.Mean[i]) / std
		sum += d * d
	}
	dist := sum / FeatureCount
	decision := m.Threshold - dist
	return decision, decision < 0
}

// ClassifierModel predicts the class index of the nearest centroid.
type ClassifierModel struct {
	Centroids []FeatureVector
}

func (m *ClassifierModel) Predict(fv FeatureVector) int {
	best := 0
	bestDist := -1.0
	for i, c := range m.Centroids {
		var sum float64
		for j := 0; j < FeatureCount; j++ {
			d := fv[j] - c[j]
			sum += d * d
		}
		if bestDist < 0 || sum < bestDist {
			bestDist = sum
			best = i
		}
	}
	return best
}

func LoadAnomalyModel(path string) (*AnomalyModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m AnomalyModel
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode anomaly model: %w", err)
	}
	return &m, nil
}

func LoadClassifierModel(path string) (*ClassifierModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m ClassifierModel
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode classifier model: %w", err)
	}
	if len(m.Centroids) == 0 {
		return nil, fmt.Errorf("classifier model at %s has no centroids", path)
	}
	return &m, nil
}

func SaveAnomalyModel(path string, m *AnomalyModel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(m)
}

func SaveClassifierModel(path string, m *ClassifierModel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(m)
}

// LoadModels loads whichever model artifacts exist at the configured paths.
// A missing or corrupt artifact is a valid runtime state: it is logged at
// warning level once and the scorer runs on its heuristic fallbacks.
func LoadModels(cfg config.ModelsConfig, logger *slog.Logger) (*AnomalyModel, *ClassifierModel) {
	var anomaly *AnomalyModel
	var classifier *ClassifierModel

	if m, err := LoadAnomalyModel(cfg.AnomalyPath); err != nil {
		if logger != nil {
			logger.Warn("anomaly model unavailable, using heuristic fallback", "path", cfg.AnomalyPath, "err", err)
		}
	} else {
		anomaly = m
		if logger != nil {
			logger.Info("anomaly model loaded", "path", cfg.AnomalyPath)
		}
	}

	if m, err := LoadClassifierModel(cfg.ClassifierPath); err != nil {
		if logger != nil {
			logger.Warn("classifier model unavailable, using rule-based fallback", "path", cfg.ClassifierPath, "err", err)
		}
	} else {
		classifier = m
		if logger != nil {
			logger.Info("threat classifier loaded", "path", cfg.ClassifierPath)
		}
	}
	return anomaly, classifier
}
