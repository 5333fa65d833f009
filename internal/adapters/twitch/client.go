// Package twitch implementa los puertos de plataforma contra el endpoint
// GQL de Twitch: colocación de apuestas, estado del canal y saldo de puntos.
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/ports"
)

const (
	defaultGQLBase = "https://gql.twitch.tv/gql"

	// Límites conservadores: lecturas a 5/s, escrituras a 1/s. El endpoint
	// GQL no documenta límites; por debajo de esto nunca hemos visto 429.
	readRatePerSec  = 5
	writeRatePerSec = 1

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Códigos de error que devuelve la mutación de predicción.
const (
	errCodeUnauthenticated = "UNAUTHENTICATED"
	errCodeRegionBlocked   = "REGION_BLOCKED"
	errCodeNotEnoughPoints = "NOT_ENOUGH_POINTS"
)

// Client habla con el GQL de Twitch con rate limiting. Las lecturas
// reintentan con backoff; SubmitWager nunca reintenta — la garantía
// at-most-once manda sobre la resiliencia.
type Client struct {
	http     *http.Client
	base     string
	clientID string
	token    string

	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

// NewClient crea un Client autenticado. base vacío usa el endpoint real.
func NewClient(base, clientID, token string) *Client {
	if base == "" {
		base = defaultGQLBase
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		base:         base,
		clientID:     clientID,
		token:        token,
		readLimiter:  rate.NewLimiter(readRatePerSec, 5),
		writeLimiter: rate.NewLimiter(writeRatePerSec, 1),
	}
}

// --- formas en cable ---

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

type predictionEventData struct {
	Channel struct {
		ID     string `json:"id"`
		Stream *struct {
			ID string `json:"id"`
		} `json:"stream"`
		ActivePredictionEvents []struct {
			ID                   string    `json:"id"`
			Title                string    `json:"title"`
			CreatedAt            time.Time `json:"createdAt"`
			PredictionWindowSecs int       `json:"predictionWindowSeconds"`
			Outcomes             []struct {
				ID            string `json:"id"`
				Title         string `json:"title"`
				TotalUsers    int    `json:"totalUsers"`
				TotalPoints   int    `json:"totalPoints"`
				TopPredictors []struct {
					Points int `json:"points"`
				} `json:"topPredictors"`
			} `json:"outcomes"`
		} `json:"activePredictionEvents"`
	} `json:"channel"`
}

type balanceData struct {
	Channel struct {
		Self struct {
			CommunityPoints struct {
				Balance int `json:"balance"`
			} `json:"communityPoints"`
		} `json:"self"`
	} `json:"channel"`
}

type makePredictionData struct {
	MakePrediction struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	} `json:"makePrediction"`
}

// --- ports.WagerSubmitter ---

// SubmitWager coloca la apuesta. Un solo intento: cualquier fallo se
// clasifica y se devuelve sin reintentar.
func (c *Client) SubmitWager(ctx context.Context, eventID, outcomeID string, amount int, token string) error {
	req := gqlRequest{
		OperationName: "MakePrediction",
		Query: `mutation MakePrediction($input: MakePredictionInput!) {
			makePrediction(input: $input) { error { code } }
		}`,
		Variables: map[string]any{
			"input": map[string]any{
				"eventID":       eventID,
				"outcomeID":     outcomeID,
				"points":        amount,
				"transactionID": token,
			},
		},
	}

	var data makePredictionData
	if err := c.do(ctx, c.writeLimiter, req, &data); err != nil {
		return fmt.Errorf("twitch.SubmitWager: %w", err)
	}
	if e := data.MakePrediction.Error; e != nil {
		return fmt.Errorf("twitch.SubmitWager: %w", classifyCode(e.Code))
	}
	return nil
}

// --- ports.StreamProvider ---

// StreamState consulta el canal: si está en directo y su predicción activa.
func (c *Client) StreamState(ctx context.Context, streamerID string) (ports.StreamState, error) {
	req := gqlRequest{
		OperationName: "ChannelPredictions",
		Query: `query ChannelPredictions($login: String!) {
			channel(name: $login) {
				id
				stream { id }
				activePredictionEvents {
					id title createdAt predictionWindowSeconds
					outcomes { id title totalUsers totalPoints topPredictors { points } }
				}
			}
		}`,
		Variables: map[string]any{"login": streamerID},
	}

	var data predictionEventData
	if err := c.doWithRetry(ctx, c.readLimiter, req, &data); err != nil {
		return ports.StreamState{}, fmt.Errorf("twitch.StreamState: %w", err)
	}

	state := ports.StreamState{
		StreamerID: streamerID,
		Live:       data.Channel.Stream != nil,
	}
	if len(data.Channel.ActivePredictionEvents) == 0 {
		return state, nil
	}

	ev := data.Channel.ActivePredictionEvents[0]
	outs := make([]domain.OutcomeStats, len(ev.Outcomes))
	for i, o := range ev.Outcomes {
		top := 0
		if len(o.TopPredictors) > 0 {
			top = o.TopPredictors[0].Points
		}
		outs[i] = domain.OutcomeStats{
			ID:          o.ID,
			Title:       o.Title,
			TotalUsers:  o.TotalUsers,
			TotalPoints: o.TotalPoints,
			TopPoints:   top,
		}
	}
	state.Active = &ports.ActivePrediction{
		EventID:   ev.ID,
		Title:     ev.Title,
		CreatedAt: ev.CreatedAt,
		Window:    time.Duration(ev.PredictionWindowSecs) * time.Second,
		Outcomes:  outs,
	}
	return state, nil
}

// Balance devuelve el saldo de puntos del bot en el canal.
func (c *Client) Balance(ctx context.Context, streamerID string) (int, error) {
	req := gqlRequest{
		OperationName: "ChannelPointsBalance",
		Query: `query ChannelPointsBalance($login: String!) {
			channel(name: $login) {
				self { communityPoints { balance } }
			}
		}`,
		Variables: map[string]any{"login": streamerID},
	}

	var data balanceData
	if err := c.doWithRetry(ctx, c.readLimiter, req, &data); err != nil {
		return 0, fmt.Errorf("twitch.Balance: %w", err)
	}
	return data.Channel.Self.CommunityPoints.Balance, nil
}

// --- transporte ---

// do ejecuta una operación GQL sin reintentos.
func (c *Client) do(ctx context.Context, limiter *rate.Limiter, req gqlRequest, out any) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Client-Id", c.clientID)
	httpReq.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ports.ErrAuthInvalid
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var gql gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		return classifyCode(gql.Errors[0].Code)
	}
	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// doWithRetry reintenta lecturas con backoff exponencial. Los errores
// clasificados (auth, región) cortan el retry: reintentar no los arregla.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, req gqlRequest, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = c.do(ctx, limiter, req, out)
		if lastErr == nil {
			return nil
		}
		if lastErr == ports.ErrAuthInvalid || lastErr == ports.ErrRegionBlocked {
			return lastErr
		}
		if attempt < maxRetries {
			c.sleep(ctx, attempt)
		}
	}
	return fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// classifyCode mapea los códigos de error de la plataforma a los errores
// del puerto.
func classifyCode(code string) error {
	switch {
	case code == errCodeUnauthenticated:
		return ports.ErrAuthInvalid
	case code == errCodeRegionBlocked, strings.Contains(code, "REGION"):
		return ports.ErrRegionBlocked
	case code == errCodeNotEnoughPoints:
		return ports.ErrInsufficientPoints
	default:
		return fmt.Errorf("platform error %q", code)
	}
}
