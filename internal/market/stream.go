package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/shopspring/decimal"
)

// AlpacaStreamer implements StreamProvider using Alpaca's WebSocket API.
type AlpacaStreamer struct {
	keyID     string
	secretKey string
	logger    *logger.Logger

	mu     sync.Mutex
	client *stream.StocksClient
	cancel context.CancelFunc
}

// NewAlpacaStreamer creates a new streamer instance.
func NewAlpacaStreamer(keyID, secretKey string, l *logger.Logger) *AlpacaStreamer {
	if l == nil {
		l = logger.NewSilent()
	}
	return &AlpacaStreamer{keyID: keyID, secretKey: secretKey, logger: l}
}

// Subscribe connects to the IEX feed and forwards trades for symbols.
// The connection lives until ctx is done or Close is called.
func (s *AlpacaStreamer) Subscribe(ctx context.Context, symbols []string, handler StreamHandler) error {
	if len(symbols) == 0 {
		return errors.New("stream: no symbols")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return errors.New("stream: already subscribed")
	}

	onTrade := func(t stream.Trade) {
		handler(t.Symbol, decimal.NewFromFloat(t.Price))
	}

	client := stream.NewStocksClient(
		marketdata.IEX,
		stream.WithCredentials(s.keyID, s.secretKey),
		stream.WithReconnectSettings(10, 500*time.Millisecond),
		stream.WithTrades(onTrade, symbols...),
	)

	ctx, cancel := context.WithCancel(ctx)
	s.logger.Info().Strs("symbols", symbols).Msg("Connecting to Alpaca stream")
	if err := client.Connect(ctx); err != nil {
		cancel()
		return err
	}
	s.client = client
	s.cancel = cancel

	go func() {
		err := <-client.Terminated()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("Stream terminated")
			return
		}
		s.logger.Info().Msg("Stream connection closed")
	}()
	return nil
}

// Close terminates the connection.
func (s *AlpacaStreamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.client = nil
	s.cancel = nil
	return nil
}
