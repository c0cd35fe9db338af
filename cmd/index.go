package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/coach"
	"github.com/spigell/interview-coach/internal/index"
	"github.com/spigell/interview-coach/internal/knowledge"
	"github.com/spigell/interview-coach/internal/logger"
)

const (
	defaultKnowledgeDir = "knowledge"
	defaultIndexPath    = "interview-coach.index.json"

	backendMemory = "memory"
	backendQdrant = "qdrant"
)

// probeQuestions is a fixed tuning aid: after a rebuild the first one should
// produce a warning, the last one should stay silent.
var probeQuestions = []string{
	"Сколько вам лет?",
	"Планируете ли вы заводить детей?",
	"Какой у вас опыт работы с Java?",
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the coaching index from the knowledge base",
	Run: func(cmd *cobra.Command, _ []string) {
		buildIndex(cmd)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("probe", false, "classify the built-in probe questions against the fresh index")
}

// buildIndex embeds every knowledge document and writes the artifact. Any
// malformed knowledge entry is fatal here, before a session can depend on it.
func buildIndex(cmd *cobra.Command) {
	ctx := context.Background()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}

	base, err := knowledge.Load(knowledgeDir(config))
	if err != nil {
		log.Fatal("loading the knowledge base", zap.Error(err))
	}

	counts := base.CountByCategory()
	log.Info("knowledge base loaded",
		zap.Int("documents", base.Len()),
		zap.Int("warnings", counts[knowledge.CategoryWarning]),
		zap.Int("tips", counts[knowledge.CategoryTip]),
		zap.Int("infos", counts[knowledge.CategoryInfo]),
	)

	embedder, err := newEmbedder(ctx, config.AI, log)
	if err != nil {
		log.Fatal("building the embedder", zap.Error(err))
	}

	entries := make([]index.Entry, 0, base.Len())
	for i, doc := range base.Documents {
		vector, err := embedder.Embed(ctx, doc.Exemplar)
		if err != nil {
			log.Fatal("embedding an exemplar",
				zap.String(logger.FieldDocument, doc.ID),
				zap.Error(err),
			)
		}

		entries = append(entries, index.Entry{Document: *doc, Vector: vector})

		log.Info("embedded an exemplar",
			zap.String(logger.FieldDocument, doc.ID),
			zap.Int("done", i+1),
			zap.Int("total", base.Len()),
		)
	}

	flat, err := index.Build(entries)
	if err != nil {
		log.Fatal("building the index", zap.Error(err))
	}

	path := indexPath(config)
	if err := flat.Save(path, embedder.Model()); err != nil {
		log.Fatal("saving the index artifact", zap.Error(err))
	}

	log.Info("index artifact saved",
		zap.String("path", path),
		zap.String(logger.FieldModel, embedder.Model()),
		zap.Int("documents", flat.Len()),
		zap.Int("dimension", flat.Dimension()),
	)

	if indexBackend(config) == backendQdrant {
		if err := rebuildQdrant(ctx, config, embedder.Model(), entries, flat.Dimension(), log); err != nil {
			log.Fatal("rebuilding the qdrant collection", zap.Error(err))
		}
	}

	if cmd.Flag("probe").Value.String() == "true" {
		runProbes(ctx, embedder, flat, config, log)
	}
}

func rebuildQdrant(ctx context.Context, config *Config, model string, entries []index.Entry, dimension int, log *zap.Logger) error {
	conn, err := grpc.Dial(qdrantAddr(config), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connecting to qdrant: %w", err)
	}
	defer conn.Close()

	remote := index.NewQdrant(conn, qdrantPrefix(config), model, log)
	return remote.Rebuild(ctx, entries, dimension)
}

// runProbes classifies the probe set against the fresh index and logs every
// decision. The scores are the threshold tuning signal.
func runProbes(ctx context.Context, embedder ai.Embedder, searcher index.Searcher, config *Config, log *zap.Logger) {
	c := coach.New(embedder, searcher, coachPolicy(config), log)

	for _, question := range probeQuestions {
		feedback, err := c.Classify(ctx, question)
		if err != nil {
			log.Warn("probe failed", zap.String("question", question), zap.Error(err))
			continue
		}

		if feedback == nil {
			log.Info("probe decision: silence", zap.String("question", question))
			continue
		}

		log.Info("probe decision: feedback",
			zap.String("question", question),
			zap.String(logger.FieldCategory, string(feedback.Category)),
			zap.String(logger.FieldDocument, feedback.DocumentID),
			zap.Float64(logger.FieldScore, feedback.Score),
		)
	}
}

func knowledgeDir(config *Config) string {
	if config != nil && strings.TrimSpace(config.KnowledgeDir) != "" {
		return config.KnowledgeDir
	}
	return defaultKnowledgeDir
}

func indexPath(config *Config) string {
	if config != nil && config.Index != nil && strings.TrimSpace(config.Index.Path) != "" {
		return config.Index.Path
	}
	return defaultIndexPath
}

func indexBackend(config *Config) string {
	if config == nil || config.Index == nil {
		return backendMemory
	}

	backend := strings.TrimSpace(strings.ToLower(config.Index.Backend))
	if backend == "" {
		return backendMemory
	}
	return backend
}

func qdrantAddr(config *Config) string {
	host := "localhost"
	port := 6334
	if config != nil && config.Index != nil && config.Index.Qdrant != nil {
		if strings.TrimSpace(config.Index.Qdrant.Host) != "" {
			host = config.Index.Qdrant.Host
		}
		if config.Index.Qdrant.Port > 0 {
			port = config.Index.Qdrant.Port
		}
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func qdrantPrefix(config *Config) string {
	if config != nil && config.Index != nil && config.Index.Qdrant != nil {
		return config.Index.Qdrant.CollectionPrefix
	}
	return ""
}

func coachPolicy(config *Config) coach.Policy {
	policy := coach.Policy{}
	if config != nil && config.Coach != nil {
		policy.ScoreThreshold = config.Coach.ScoreThreshold
		policy.TopK = config.Coach.TopK
	}
	return policy
}
