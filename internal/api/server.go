package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/char5742/touchsampler/internal/config"
	"github.com/char5742/touchsampler/internal/monitoring"
)

// Server はAPIサーバーを表す構造体
type Server struct {
	server      *http.Server
	cfg         *config.Config
	log         zerolog.Logger
	metrics     *monitoring.Metrics
	broadcaster *Broadcaster
	service     *ResampleService
	mutex       sync.RWMutex
	port        int
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(cfg *config.Config, log zerolog.Logger, port int) *Server {
	metrics := monitoring.NewMetrics()
	broadcaster := NewBroadcaster(log)
	return &Server{
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
		broadcaster: broadcaster,
		service:     NewResampleService(cfg, log, metrics, broadcaster),
		port:        port,
	}
}

// Start はAPIサーバーを開始する
func (s *Server) Start() error {
	// ルーターの設定
	router := http.NewServeMux()
	s.setupRoutes(router)

	// HTTPサーバーの設定
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	// サーバーの起動
	s.log.Info().Str("addr", fmt.Sprintf("http://localhost:%d", s.port)).
		Msg("APIサーバーを開始します")
	return s.server.ListenAndServe()
}

// Stop はAPIサーバーを停止する
func (s *Server) Stop() error {
	if s.service.IsRunning() {
		_ = s.service.Stop()
	}
	if s.server != nil {
		s.log.Info().Msg("APIサーバーを停止します")
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// Service はリサンプリングサービスを返す
func (s *Server) Service() *ResampleService {
	return s.service
}

// GetConfig は現在の設定を返す
func (s *Server) GetConfig() *config.Config {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.cfg
}

// UpdateConfig は設定を更新する
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cfg = cfg
}

// writeJSON はJSONレスポンスを書き込む
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "レスポンスの書き込みに失敗しました", http.StatusInternalServerError)
	}
}

// writeError はエラーレスポンスを書き込む
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
