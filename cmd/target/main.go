// Command target runs table-understanding benchmark tasks: it retrieves
// candidate tables for every query of the configured datasets, drives the
// downstream generator, and reports retrieval and downstream scores.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daniel-gomm/target/internal/dataset"
	"github.com/daniel-gomm/target/internal/generation"
	"github.com/daniel-gomm/target/internal/logging"
	"github.com/daniel-gomm/target/internal/retriever"
	"github.com/daniel-gomm/target/internal/task"
)

type datasetConfig struct {
	Queries     string `mapstructure:"queries"`
	DatabaseDir string `mapstructure:"database_dir"`
}

type embeddingConfig struct {
	Model   string `mapstructure:"model"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

type config struct {
	Model     generation.ModelConfig   `mapstructure:"model"`
	Embedding embeddingConfig          `mapstructure:"embedding"`
	Datasets  map[string]datasetConfig `mapstructure:"datasets"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "target",
		Short:         "Benchmark harness for table retrieval and downstream generation tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a task on the configured datasets",
		RunE:  runEval,
	}

	flags := cmd.Flags()
	flags.String("config", "target.yaml", "path to the config file")
	flags.String("task", "text2sql", "task to run: text2sql | retrieval")
	flags.Int("batch-size", 64, "queries per batch")
	flags.Int("top-k", 5, "tables to retrieve per query")
	flags.Int("workers", 4, "concurrent SQL evaluation workers")
	flags.Duration("timeout", 60*time.Second, "per-query SQL execution timeout")
	flags.Bool("ves", false, "also compute the valid efficiency score")
	flags.String("output", "", "write results JSON to this file instead of stdout")
	flags.Bool("verbose", false, "debug logging")

	viper.BindPFlags(flags)
	return cmd
}

func runEval(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.New(viper.GetBool("verbose"))

	viper.SetConfigFile(viper.GetString("config"))
	viper.SetEnvPrefix("TARGET")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("no datasets configured")
	}

	// Load datasets.
	loaders := make(map[string]dataset.Loader, len(cfg.Datasets))
	sqlLoaders := make(map[string]dataset.Text2SQLLoader, len(cfg.Datasets))
	datasetNames := make([]string, 0, len(cfg.Datasets))
	for name, dc := range cfg.Datasets {
		log.WithField("dataset", name).Info("loading dataset")
		loader := dataset.NewText2SQL(name, dc.Queries, dc.DatabaseDir, 0)
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("load dataset %s: %w", name, err)
		}
		loaders[name] = loader
		sqlLoaders[name] = loader
		datasetNames = append(datasetNames, name)
	}

	// Index the corpora into the retriever.
	embedding := chromem.NewEmbeddingFuncOpenAICompat(
		cfg.Embedding.BaseURL, cfg.Embedding.Token, cfg.Embedding.Model, nil)
	ret := retriever.NewChromem(embedding)
	for name, loader := range loaders {
		log.WithField("dataset", name).Info("indexing corpus")
		if err := ret.EmbedCorpus(ctx, name, loader.TableIDToTable()); err != nil {
			return fmt.Errorf("index corpus %s: %w", name, err)
		}
	}

	selected, err := buildTask(viper.GetString("task"), cfg, sqlLoaders, datasetNames, log)
	if err != nil {
		return err
	}

	runner := task.NewRunner(selected, log)
	results, err := runner.Run(ctx, ret, loaders, task.Options{
		BatchSize: viper.GetInt("batch-size"),
		TopK:      viper.GetInt("top-k"),
	})
	if err != nil {
		return err
	}

	return writeResults(results, viper.GetString("output"), log)
}

func buildTask(name string, cfg config, sqlLoaders map[string]dataset.Text2SQLLoader, datasetNames []string, log *logrus.Logger) (task.Task, error) {
	switch name {
	case "retrieval":
		return task.NewTableRetrieval(datasetNames...), nil
	case "text2sql":
		model, err := generation.NewModel(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("create model: %w", err)
		}
		gen := generation.NewDefaultWithPrompts(model,
			generation.Text2SQLSystemPrompt, generation.Text2SQLUserTemplate)
		t := task.NewText2SQL(gen, task.Text2SQLConfig{
			Datasets:   datasetNames,
			IncludeVES: viper.GetBool("ves"),
			Workers:    viper.GetInt("workers"),
			Timeout:    viper.GetDuration("timeout"),
			Logger:     log,
		})
		t.SetupDatabaseDirs(sqlLoaders)
		return t, nil
	default:
		return nil, fmt.Errorf("unknown task %q, use text2sql or retrieval", name)
	}
}

func writeResults(results map[string]task.Result, output string, log *logrus.Logger) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	log.WithField("path", output).Info("results written")
	return nil
}
