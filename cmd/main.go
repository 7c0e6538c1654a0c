package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/char5742/touchsampler/internal/api"
	"github.com/char5742/touchsampler/internal/config"
	"github.com/char5742/touchsampler/internal/gui"
	"github.com/char5742/touchsampler/internal/logging"
	"github.com/char5742/touchsampler/internal/monitoring"
)

func main() {
	// コマンドライン引数の解析
	useApi := flag.Bool("api", false, "APIサーバーモードで起動します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 8080, "APIサーバーのポート番号")
	debug := flag.Bool("debug", false, "リサンプリングの診断ログを有効にします")
	open := flag.Bool("open", false, "起動後にダッシュボードをブラウザで開きます")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		} else {
			fmt.Printf("設定ファイルを読み込みました: %s\n", cfgPath)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if *debug {
		cfg.Resampler.Debug = true
	}
	log := logging.New(cfg.Resampler.Debug)

	// シグナルハンドラの設定
	handleSignals()

	// APIモードかCLIモードかを判断
	if *useApi {
		// APIモードで実行
		log.Info().Int("port", *port).Msg("APIサーバーモードで起動します")
		server := api.NewServer(cfg, log, *port)

		if *open {
			go func() {
				url := fmt.Sprintf("http://localhost:%d", *port)
				if err := gui.Open(url); err != nil {
					log.Warn().Err(err).Msg("ブラウザの起動に失敗しました")
				}
			}()
		}

		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("APIサーバーの起動に失敗しました")
		}
		return
	}

	// CLIモードで実行
	log.Info().Msg("CLIモードで起動します")
	service := api.NewResampleService(cfg, log, monitoring.NewMetrics(), nil)
	if err := service.Start(); err != nil {
		log.Error().Err(err).Msg("リサンプリングサービスの起動に失敗しました")
		os.Exit(1)
	}

	// シグナルが来るまで待機（終了処理はhandleSignals内で行われる）
	select {}
}

func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("シャットダウンします...")
		os.Exit(0)
	}()
}
