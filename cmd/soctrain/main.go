package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"socsim/internal/config"
	"socsim/internal/logging"
	"socsim/internal/model"
	"socsim/internal/threat"
)

// soctrain fits the model artifacts the daemon loads at startup. Run it once
// before socsimd; without artifacts the daemon falls back to its heuristics.
func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	perClass := flag.Int("samples", 1000, "training samples per threat class")
	contamination := flag.Float64("contamination", 0.1, "expected outlier fraction in benign traffic")
	seed := flag.Uint64("seed", 42, "rng seed for reproducible artifacts")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	logger := logging.NewLogger(cfg.LogLevel)

	rng := rand.New(rand.NewPCG(*seed, *seed))
	samples, classes := threat.SynthesizeTrainingSet(rng, *perClass)
	logger.Info("training set synthesized",
		"samples", len(samples), "classes", len(model.ThreatLabels))

	var benign []threat.FeatureVector
	for i, c := range classes {
		if model.ThreatLabels[c] == model.LabelBenign {
			benign = append(benign, samples[i])
		}
	}
	anomaly := threat.TrainAnomalyModel(benign, *contamination)
	if anomaly == nil {
		logger.Error("anomaly training failed, no benign samples")
		os.Exit(1)
	}

	classifier := threat.TrainClassifier(samples, classes, len(model.ThreatLabels))
	if classifier == nil {
		logger.Error("classifier training failed")
		os.Exit(1)
	}
	correct := 0
	for i, s := range samples {
		if classifier.Predict(s) == classes[i] {
			correct++
		}
	}
	logger.Info("classifier fitted",
		"training_accuracy", fmt.Sprintf("%.3f", float64(correct)/float64(len(samples))))

	saveAnomaly := func(p string) error { return threat.SaveAnomalyModel(p, anomaly) }
	if err := writeModel(cfg.Models.AnomalyPath, saveAnomaly); err != nil {
		logger.Error("write anomaly model", "path", cfg.Models.AnomalyPath, "err", err)
		os.Exit(1)
	}
	logger.Info("anomaly model written",
		"path", cfg.Models.AnomalyPath, "threshold", anomaly.Threshold)

	saveClassifier := func(p string) error { return threat.SaveClassifierModel(p, classifier) }
	if err := writeModel(cfg.Models.ClassifierPath, saveClassifier); err != nil {
		logger.Error("write classifier model", "path", cfg.Models.ClassifierPath, "err", err)
		os.Exit(1)
	}
	logger.Info("threat classifier written",
		"path", cfg.Models.ClassifierPath, "centroids", len(classifier.Centroids))
}

func writeModel(path string, save func(string) error) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return save(path)
}
