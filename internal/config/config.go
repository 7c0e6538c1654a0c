package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Resampler ResamplerConfig `toml:"resampler"`
	Source    SourceConfig    `toml:"source"`
	TouchPad  TouchPadConfig  `toml:"touchpad"`
	Frame     FrameConfig     `toml:"frame"`
	Motion    MotionConfig    `toml:"motion"`
}

// ResamplerConfig はリサンプラーの設定
// 補間・外挿の時間定数は挙動の一部なので設定では変更できない
type ResamplerConfig struct {
	Enabled bool          `toml:"enabled"`
	Debug   bool          `toml:"debug"`
	Latency time.Duration `toml:"latency"` // フレーム時刻から引く遅延
}

// SourceConfig は入力元タッチデバイスの設定
type SourceConfig struct {
	PreferredDevice string `toml:"preferred_device"` // 空の場合は自動検出
	Grab            bool   `toml:"grab"`             // デバイスを専有するか
}

// TouchPadConfig は仮想タッチパッドの設定
type TouchPadConfig struct {
	MinX int32 `toml:"min_x"`
	MaxX int32 `toml:"max_x"`
	MinY int32 `toml:"min_y"`
	MaxY int32 `toml:"max_y"`
}

// FrameConfig はフレーム周期の設定
type FrameConfig struct {
	Interval time.Duration `toml:"interval"` // リサンプリング周期
}

// MotionConfig は合成後サンプルの平滑化設定
type MotionConfig struct {
	FilterEnabled         bool    `toml:"filter_enabled"`
	FilterSmoothingFactor float64 `toml:"filter_smoothing_factor"`
	FilterWarmUpCount     int     `toml:"filter_warm_up_count"`
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Resampler: ResamplerConfig{
			Enabled: true,
			Debug:   false,
			Latency: 5 * time.Millisecond,
		},
		Source: SourceConfig{
			PreferredDevice: "",
			Grab:            false,
		},
		TouchPad: TouchPadConfig{
			MinX: 0,
			MaxX: 32767,
			MinY: 0,
			MaxY: 32767,
		},
		Frame: FrameConfig{
			Interval: 8333 * time.Microsecond, // 120Hz
		},
		Motion: MotionConfig{
			FilterEnabled:         false,
			FilterSmoothingFactor: 0.5,
			FilterWarmUpCount:     4,
		},
	}
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "touchsampler"), nil
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
