package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
)

// Delivery channels understood by the formatter. Anything that is not
// ChannelWhatsApp renders the web shape.
const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
)

// Result is the outcome of one search: a channel-specific rendering plus
// the raw rows it was built from.
type Result struct {
	Data any          `json:"data"`
	Raw  []domain.Row `json:"raw"`
}

// Service composes parsing, entity resolution, compilation and execution
// into the end-to-end natural-language search flow.
type Service struct {
	parser   IntentParser
	resolver Resolver
	compiler Compiler
	executor Executor
	history  QueryLogger
	topK     int
	logger   *zap.Logger
}

// New creates the search service. history may be nil to disable query
// logging.
func New(
	parser IntentParser,
	resolver Resolver,
	compiler Compiler,
	executor Executor,
	history QueryLogger,
	topK int,
	logger *zap.Logger,
) *Service {
	return &Service{
		parser:   parser,
		resolver: resolver,
		compiler: compiler,
		executor: executor,
		history:  history,
		topK:     topK,
		logger:   logger,
	}
}

// Search runs the full pipeline for text and renders the result for
// channel. sender is the originating phone number ("" for anonymous
// channels) and only affects query-log attribution. The only surfaced
// failure is remote execution; every upstream enrichment degrades
// internally.
func (s *Service) Search(ctx context.Context, text, channel, sender string) (*Result, error) {
	s.logger.Info("Processing search query",
		zap.String("query", text),
		zap.String("channel", channel),
	)

	params := s.parser.Parse(ctx, text)
	s.logger.Debug("Parsed query parameters", zap.Any("params", params.AsMap()))

	resolved := s.resolver.Resolve(ctx, params.Entity, s.topK)
	compiled := s.compiler.Compile(params, resolved)
	s.logger.Debug("Compiled remote query",
		zap.String("dataset", compiled.Dataset),
		zap.Any("params", compiled.Params),
	)

	rows, err := s.executor.Execute(ctx, compiled.Dataset, compiled.Params)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Remote query returned", zap.Int("rows", len(rows)))

	s.logQuery(ctx, sender, channel, text, params)

	var data any
	if channel == ChannelWhatsApp {
		data = formatWhatsApp(rows)
	} else {
		data = formatWeb(rows, params)
	}
	return &Result{Data: data, Raw: rows}, nil
}

func (s *Service) logQuery(ctx context.Context, sender, channel, text string, params domain.QueryParams) {
	if s.history == nil {
		return
	}
	if err := s.history.LogQuery(ctx, sender, channel, text, params); err != nil {
		s.logger.Warn("Failed to record query log", zap.Error(err))
	}
}
