package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/coach"
	"github.com/spigell/interview-coach/internal/index"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/logger"
)

const (
	PromptContinue = "Continue"
	PromptStats    = "Show session stats"
	PromptExit     = "Exit"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptContinue, PromptStats, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a coached interview session",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("require-coach", false, "exit instead of starting with coaching disabled when the index is unavailable")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Info("starting the interview coach", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		log.Fatal("config is required")
	}

	generator, err := newGenerator(ctx, config.AI, log)
	if err != nil {
		log.Fatal("building the candidate generator", zap.Error(err))
	}

	embedder, err := newEmbedder(ctx, config.AI, log)
	if err != nil {
		log.Fatal("building the embedder", zap.Error(err))
	}

	classifier := prepareCoach(ctx, cmd, config, embedder, log)

	persona, err := selectPersona(config.Persona)
	if err != nil {
		log.Fatal("selecting the candidate persona", zap.Error(err))
	}

	responder, err := interview.NewResponder(generator, persona, maxLogLength(config), log)
	if err != nil {
		log.Fatal("building the candidate responder", zap.Error(err))
	}

	emitter := func(feedback *coach.Feedback) {
		fmt.Println(feedback.Format())
	}

	session, err := interview.NewSession(classifier, responder, emitter, persona, turnTimeout(config), log)
	if err != nil {
		log.Fatal("creating the session", zap.Error(err))
	}

	stats := newSessionStats()

	fmt.Printf("Интервью с кандидатом: %s (%s)\n", persona.Name, persona.Psychotype)
	fmt.Println("Задавайте вопросы. Пустая строка открывает меню.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			log.Info("exiting", zap.String("reason", "end of input"))
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			_, action, err := actionPrompt.Run()
			if err != nil {
				log.Fatal("exiting", zap.Error(err))
			}

			if err := handleAction(action, stats, log); err != nil {
				if errors.Is(err, errExit) {
					return
				}
				log.Fatal("exiting", zap.Error(err))
			}
			continue
		}

		result, err := session.HandleQuestion(ctx, interview.Turn{Question: question})
		if err != nil {
			log.Error("handling the question", zap.Error(err))
			continue
		}

		// Feedback, if any, was printed by the emitter before the reply
		// was produced.
		fmt.Printf("%s: %s\n\n", persona.Name, result.Reply)

		stats.record(result)
	}

	if err := scanner.Err(); err != nil {
		log.Fatal("reading questions", zap.Error(err))
	}
}

func handleAction(action string, stats *sessionStats, log *zap.Logger) error {
	switch action {
	case PromptContinue:
		return nil
	case PromptStats:
		pretty, _ := json.MarshalIndent(stats, "", "  ")
		log.Info(string(pretty), zap.Int("turns count", stats.Turns))
		return nil
	case PromptExit:
		log.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// prepareCoach loads the index and builds the coach. An unavailable index
// disables coaching unless --require-coach is set: the interview itself must
// survive a missing artifact.
func prepareCoach(ctx context.Context, cmd *cobra.Command, config *Config, embedder ai.Embedder, log *zap.Logger) interview.Classifier {
	searcher, err := openSearcher(ctx, config, embedder, log)
	if err != nil {
		if cmd.Flag("require-coach").Value.String() == "true" {
			log.Fatal("coaching index is unavailable", zap.Error(err))
		}

		log.Warn("starting with coaching disabled",
			zap.Error(err),
			zap.String("hint", "run the index command to build the coaching index"),
		)
		return nil
	}

	log.Info("coaching enabled",
		zap.String("backend", indexBackend(config)),
		zap.Int("documents", searcher.Len()),
	)

	return coach.New(embedder, searcher, coachPolicy(config), log)
}

// openSearcher loads the artifact and, for the qdrant backend, verifies the
// remote collection against it.
func openSearcher(ctx context.Context, config *Config, embedder ai.Embedder, log *zap.Logger) (index.Searcher, error) {
	artifact, err := index.LoadArtifact(indexPath(config), embedder.Model())
	if err != nil {
		return nil, err
	}

	if indexBackend(config) != backendQdrant {
		return artifact.Flat()
	}

	conn, err := grpc.Dial(qdrantAddr(config), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", index.ErrUnavailable, err)
	}

	remote := index.NewQdrant(conn, qdrantPrefix(config), embedder.Model(), log)
	if err := remote.Verify(ctx, artifact.Dimension, len(artifact.Entries)); err != nil {
		conn.Close()
		return nil, err
	}

	return remote, nil
}

func selectPersona(config *PersonaConfig) (interview.Persona, error) {
	persona := interview.Persona{
		Name:   "Анна",
		Resume: "Инженер-разработчик, пять лет коммерческого опыта.",
	}
	if config != nil {
		if strings.TrimSpace(config.Name) != "" {
			persona.Name = config.Name
		}
		if strings.TrimSpace(config.Resume) != "" {
			persona.Resume = config.Resume
		}
	}

	if config != nil && strings.TrimSpace(config.Psychotype) != "" {
		psychotype, err := interview.ParsePsychotype(config.Psychotype)
		if err != nil {
			return persona, err
		}
		persona.Psychotype = psychotype
		return persona, nil
	}

	items := make([]string, 0)
	for _, psychotype := range interview.Psychotypes() {
		items = append(items, string(psychotype))
	}

	psychotypePrompt := promptui.Select{
		Label: "Choose the candidate psychotype",
		Items: items,
	}

	_, selected, err := psychotypePrompt.Run()
	if err != nil {
		return persona, err
	}

	psychotype, err := interview.ParsePsychotype(selected)
	if err != nil {
		return persona, err
	}

	persona.Psychotype = psychotype
	return persona, nil
}

type sessionStats struct {
	Turns     int            `json:"turns"`
	Feedbacks map[string]int `json:"feedbacks"`
}

func newSessionStats() *sessionStats {
	return &sessionStats{Feedbacks: make(map[string]int)}
}

func (s *sessionStats) record(result *interview.TurnResult) {
	s.Turns++
	if result.Feedback != nil {
		s.Feedbacks[string(result.Feedback.Category)]++
	}
}

func maxLogLength(config *Config) int {
	if config != nil && config.AI != nil && config.AI.Gemini != nil {
		return config.AI.Gemini.MaxLogLength
	}
	return 0
}

func turnTimeout(config *Config) time.Duration {
	if config != nil && config.Coach != nil && config.Coach.TurnTimeout > 0 {
		return config.Coach.TurnTimeout
	}
	return interview.DefaultTurnTimeout
}
