package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"

	"github.com/tavernkeep/dm-engine/internal/clients/llm"
	"github.com/tavernkeep/dm-engine/internal/entities"
	sessionorch "github.com/tavernkeep/dm-engine/internal/orchestrators/session"
	"github.com/tavernkeep/dm-engine/internal/pkg/clock"
	"github.com/tavernkeep/dm-engine/internal/redis"
	"github.com/tavernkeep/dm-engine/internal/repositories/reference"
	sessionrepo "github.com/tavernkeep/dm-engine/internal/repositories/session"
	"github.com/tavernkeep/dm-engine/internal/rules/dice"
	sessionsvc "github.com/tavernkeep/dm-engine/internal/services/session"
	"github.com/tavernkeep/dm-engine/internal/world"
)

var (
	openaiKey     string
	openaiBaseURL string
	openaiModel   string
	redisAddr     string
	resumeSession string
	playerName    string
	dmName        string
	verbose       bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start an interactive session",
	Long:  `Start an interactive session against the built-in demo campaign. Type 'quit' to save and exit.`,
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().StringVar(&openaiKey, "openai-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key (defaults to OPENAI_API_KEY)")
	playCmd.Flags().StringVar(&openaiBaseURL, "base-url", "", "OpenAI-compatible API base URL")
	playCmd.Flags().StringVar(&openaiModel, "model", "", "chat model to use")
	playCmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for saves (in-memory when empty)")
	playCmd.Flags().StringVar(&resumeSession, "resume", "", "session id to resume")
	playCmd.Flags().StringVar(&playerName, "name", "Kira", "player character name")
	playCmd.Flags().StringVar(&dmName, "dm-name", "Joe", "name the narrator answers to")
	playCmd.Flags().BoolVar(&verbose, "verbose", false, "log world events")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if openaiKey == "" {
		return fmt.Errorf("an API key is required: pass --openai-key or set OPENAI_API_KEY")
	}

	generator, err := llm.New(&llm.Config{
		APIKey:  openaiKey,
		BaseURL: openaiBaseURL,
		Model:   openaiModel,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	repo, err := buildRepository(logger)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	if verbose {
		world.SubscribeLogging(bus, logger)
	}

	refs := reference.New()
	svc, err := sessionorch.New(&sessionorch.Config{
		Repository: repo,
		Campaign:   demoCampaign(),
		Nodes:      demoNodes(),
		NPCs:       demoNPCs(),
		Encounters: demoEncounters(),
		Generator:  generator,
		Roller:     dice.NewDefault(),
		Monsters:   refs,
		Weapons:    refs,
		EventBus:   bus,
		DMName:     dmName,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}

	sessionID, err := openSession(ctx, svc)
	if err != nil {
		return err
	}

	return playLoop(ctx, svc, sessionID)
}

func buildRepository(logger *slog.Logger) (sessionrepo.Repository, error) {
	if redisAddr == "" {
		return sessionrepo.NewInMemory(), nil
	}

	client, err := redis.NewClient(redisAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using redis saves", "addr", redisAddr)
	return sessionrepo.NewRedisRepository(&sessionrepo.Config{
		Client: client,
		Clock:  clock.New(),
	})
}

func openSession(ctx context.Context, svc sessionsvc.Service) (string, error) {
	if resumeSession != "" {
		got, err := svc.GetSession(ctx, &sessionsvc.GetSessionInput{SessionID: resumeSession})
		if err != nil {
			return "", fmt.Errorf("failed to resume session: %w", err)
		}
		fmt.Printf("Resuming %s at %s.\n\n", got.State.Character.Name, got.State.Location.NodeID)
		return resumeSession, nil
	}

	created, err := svc.NewSession(ctx, &sessionsvc.NewSessionInput{Character: demoCharacter(playerName)})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Printf("Session %s\n\n", created.SessionID)
	if created.OpeningNarration != "" {
		fmt.Printf("[DM] %s\n\n", created.OpeningNarration)
	}
	return created.SessionID, nil
}

func playLoop(ctx context.Context, svc sessionsvc.Service, sessionID string) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if ctx.Err() != nil || !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		out, err := svc.ProcessInput(ctx, &sessionsvc.ProcessInputInput{
			SessionID: sessionID,
			Text:      text,
		})
		if err != nil {
			fmt.Printf("(the narrator falters: %v)\n", err)
			continue
		}
		printTurn(out)
	}

	// final save on the way out
	if _, err := svc.EndSession(context.Background(), &sessionsvc.EndSessionInput{SessionID: sessionID}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	fmt.Printf("\nSaved session %s. Resume with --resume %s\n", sessionID, sessionID)
	return scanner.Err()
}

func printTurn(out *sessionsvc.ProcessInputOutput) {
	speaker := strings.ToUpper(out.Speaker)
	if out.Narration != "" {
		fmt.Printf("[%s] %s\n", speaker, out.Narration)
	}
	for _, event := range out.Events {
		fmt.Printf("  * %s\n", event)
	}
	if out.InCombat && out.CombatStatus != nil {
		fmt.Printf("  -- round %d --\n", out.CombatStatus.Round)
		for _, entry := range out.CombatStatus.Entries {
			marker := "  "
			if entry.IsCurrent {
				marker = "->"
			}
			fmt.Printf("  %s %s %d/%d HP\n", marker, entry.Name, entry.HPCurrent, entry.HPMax)
		}
	}
	fmt.Println()
}

func demoCharacter(name string) *entities.Character {
	character, err := entities.NewCharacter(&entities.CharacterConfig{
		Name: name, Race: "human", Class: "fighter", Level: 3,
		AbilityScores: entities.AbilityScores{
			Strength: 16, Dexterity: 12, Constitution: 14,
			Intelligence: 10, Wisdom: 11, Charisma: 10,
		},
		HPMax:      28,
		ArmorClass: 16,
	})
	if err != nil {
		panic(err)
	}
	character.Inventory = []entities.InventoryItem{
		{ItemID: "longsword", Quantity: 1, Equipped: true},
		{ItemID: "torch", Quantity: 3},
	}
	return character
}
