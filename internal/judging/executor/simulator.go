package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"judgeflow/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultSimMinDelay = 500 * time.Millisecond
	defaultSimMaxDelay = 2000 * time.Millisecond
)

// SimulatorConfig configures the local execution service stand-in.
type SimulatorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	MinDelay time.Duration `yaml:"minDelay"`
	MaxDelay time.Duration `yaml:"maxDelay"`
}

// Simulator accepts Judge0-style submissions and, after a random delay, posts
// an Accepted callback whose stdout equals the expected output.
type Simulator struct {
	minDelay time.Duration
	maxDelay time.Duration
	http     *http.Client
	wg       sync.WaitGroup
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = defaultSimMinDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultSimMaxDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Simulator{
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type simulatedStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type simulatedResult struct {
	Stdout        *string         `json:"stdout"`
	Stderr        *string         `json:"stderr"`
	CompileOutput *string         `json:"compile_output"`
	Message       *string         `json:"message"`
	Time          string          `json:"time"`
	Memory        int             `json:"memory"`
	Status        simulatedStatus `json:"status"`
	Token         string          `json:"token"`
}

// Handle serves POST /dev/judge0/submissions.
func (s *Simulator) Handle(c *gin.Context) {
	var req ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallbackURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callback_url is required"})
		return
	}
	token := "fake-token-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	delay := s.delay()
	logger.Info(c.Request.Context(), "simulator accepted submission",
		zap.String("callback_url", req.CallbackURL),
		zap.Duration("delay", delay),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		time.Sleep(delay)
		s.sendCallback(req, token)
	}()

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// Wait blocks until every scheduled callback has been sent.
func (s *Simulator) Wait() {
	s.wg.Wait()
}

func (s *Simulator) delay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(rand.Int63n(int64(span)+1))
}

func (s *Simulator) sendCallback(req ExecutionRequest, token string) {
	stdout := req.ExpectedOutput
	payload, err := json.Marshal(simulatedResult{
		Stdout: &stdout,
		Time:   "0.001",
		Memory: 2048,
		Status: simulatedStatus{ID: 3, Description: "Accepted"},
		Token:  token,
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.post(ctx, req.CallbackURL, payload); err != nil {
		logger.Warn(ctx, "simulator callback failed", zap.String("callback_url", req.CallbackURL), zap.Error(err))
		return
	}
	logger.Debug(ctx, "simulator callback sent", zap.String("callback_url", req.CallbackURL))
}

func (s *Simulator) post(ctx context.Context, url string, payload []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(httpReq)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	}
	return nil
}
