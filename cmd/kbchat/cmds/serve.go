package cmds

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	geppettosections "github.com/go-go-golems/geppetto/pkg/sections"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/kbchat/pkg/server"
)

type ServeSettings struct {
	Addr             string   `glazed:"addr"`
	PublicURL        string   `glazed:"public-url"`
	AllowedOrigins   []string `glazed:"allowed-origins"`
	MaxBodyBytes     int      `glazed:"max-body-bytes"`
	MaxQuestionChars int      `glazed:"max-question-chars"`
	Answerer         string   `glazed:"answerer"`
	AnswersFile      string   `glazed:"answers-file"`
	GeminiModel      string   `glazed:"gemini-model"`
	LLMSystemPrompt  string   `glazed:"llm-system-prompt"`
	EnvFile          string   `glazed:"env-file"`
}

type ServeCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = &ServeCommand{}

func NewServeCommand() (*ServeCommand, error) {
	// ai-* flags configure the llm answerer
	geSections, err := geppettosections.CreateGeppettoSections()
	if err != nil {
		return nil, errors.Wrap(err, "create geppetto sections")
	}

	return &ServeCommand{
		CommandDescription: cmds.NewCommandDescription(
			"serve",
			cmds.WithShort("Serve the chat endpoint and its config resource"),
			cmds.WithFlags(
				fields.New("addr", fields.TypeString, fields.WithDefault(":8080"), fields.WithHelp("Listen address")),
				fields.New("public-url", fields.TypeString, fields.WithDefault(""),
					fields.WithHelp("Chat URL advertised in /config.json (default http://localhost<addr>/api/chat)")),
				fields.New("allowed-origins", fields.TypeStringList, fields.WithDefault([]string{}),
					fields.WithHelp("Origins that receive CORS headers")),
				fields.New("max-body-bytes", fields.TypeInteger, fields.WithDefault(server.DefaultMaxBodyBytes),
					fields.WithHelp("Largest accepted request body")),
				fields.New("max-question-chars", fields.TypeInteger, fields.WithDefault(server.DefaultMaxQuestionChars),
					fields.WithHelp("Longest accepted question, in characters")),
				fields.New("answerer", fields.TypeChoice, fields.WithChoices("echo", "static", "gemini", "llm"),
					fields.WithDefault("echo"), fields.WithHelp("Backend producing answers")),
				fields.New("answers-file", fields.TypeString, fields.WithDefault("answers.yaml"),
					fields.WithHelp("YAML file used by the static answerer")),
				fields.New("gemini-model", fields.TypeString, fields.WithDefault(server.DefaultGeminiModel),
					fields.WithHelp("Gemini model used by the gemini answerer")),
				fields.New("llm-system-prompt", fields.TypeString, fields.WithDefault(server.DefaultLLMSystemPrompt),
					fields.WithHelp("System prompt used by the llm answerer")),
				fields.New("env-file", fields.TypeString, fields.WithDefault(".env"),
					fields.WithHelp("Dotenv file read before starting, missing is fine")),
			),
			cmds.WithSections(geSections...),
		),
	}, nil
}

func (c *ServeCommand) Run(ctx context.Context, parsedLayers *values.Values) error {
	s := &ServeSettings{}
	if err := parsedLayers.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "init serve settings")
	}

	if s.EnvFile != "" {
		if err := godotenv.Load(s.EnvFile); err != nil {
			log.Debug().Err(err).Str("file", s.EnvFile).Msg("No env file loaded")
		}
	}

	answerer, closeAnswerer, err := buildAnswerer(ctx, s, parsedLayers)
	if err != nil {
		return err
	}
	defer closeAnswerer()

	publicURL := s.PublicURL
	if publicURL == "" {
		host := s.Addr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		publicURL = "http://" + host + server.ChatPath
	}

	var origins []string
	for _, o := range s.AllowedOrigins {
		origins = append(origins, server.ParseOrigins(o)...)
	}

	handler := server.NewChatHandler(answerer, server.Options{
		MaxBodyBytes:     int64(s.MaxBodyBytes),
		MaxQuestionChars: s.MaxQuestionChars,
		AllowedOrigins:   origins,
	})
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           server.NewRouter(handler, publicURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("Shutting down chat server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		log.Info().Str("addr", s.Addr).Str("public_url", publicURL).Str("answerer", s.Answerer).Msg("Starting chat server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	return eg.Wait()
}

func buildAnswerer(ctx context.Context, s *ServeSettings, parsedLayers *values.Values) (server.Answerer, func(), error) {
	noop := func() {}
	switch s.Answerer {
	case "", "echo":
		return server.EchoAnswerer{}, noop, nil
	case "static":
		a, err := server.LoadStaticAnswerer(s.AnswersFile)
		if err != nil {
			return nil, noop, err
		}
		return a, noop, nil
	case "gemini":
		g, err := server.NewGeminiAnswerer(ctx, os.Getenv("GEMINI_API_KEY"), s.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return g, func() { _ = g.Close() }, nil
	case "llm":
		a, err := server.NewLLMAnswererFromValues(parsedLayers, s.LLMSystemPrompt)
		if err != nil {
			return nil, noop, err
		}
		return a, noop, nil
	default:
		return nil, noop, errors.Errorf("unknown answerer %q", s.Answerer)
	}
}
