package features

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Device は検出された入力デバイスを表す
type Device struct {
	Name string
	Path string
}

// DeviceEventType はデバイスイベントの種類を表す
type DeviceEventType int

const (
	DeviceAdded DeviceEventType = iota
	DeviceRemoved
)

// DeviceEvent はデバイスの変更イベントを表す
type DeviceEvent struct {
	Type   DeviceEventType
	Device *Device
	Path   string
}

// DeviceCallback はデバイスイベント発生時に呼び出されるコールバック関数の型
type DeviceCallback func(event DeviceEvent)

// ScanTouchDevices は接続中のタッチ系デバイスを検出して返します
func ScanTouchDevices() ([]Device, error) {
	entries, err := os.ReadDir("/dev/input/by-id")
	if err != nil {
		return nil, err
	}
	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		// eventが含まれない場合はスキップ
		if !strings.Contains(name, "event") {
			continue
		}
		if !strings.Contains(name, "touch") && !strings.Contains(name, "Touch") {
			continue
		}
		fullPath := "/dev/input/by-id/" + name
		realPath, err := os.Readlink(fullPath)
		if err != nil {
			continue
		}

		// 絶対パスを構築
		absPath := ""
		if strings.HasPrefix(realPath, "/") {
			absPath = realPath
		} else {
			absPath = "/dev/input/" + filepath.Base(realPath)
		}

		devices = append(devices, Device{Name: name, Path: absPath})
	}

	return devices, nil
}

// DeviceMonitor はタッチデバイスの接続状態を監視する構造体
type DeviceMonitor struct {
	watcher   *fsnotify.Watcher
	log       zerolog.Logger
	callbacks []DeviceCallback
	devices   map[string]*Device // パスをキーにしたデバイスマップ
	mutex     sync.RWMutex
	stopChan  chan struct{}
	isRunning bool
}

// NewDeviceMonitor は新しいDeviceMonitorを作成する
func NewDeviceMonitor(log zerolog.Logger) (*DeviceMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &DeviceMonitor{
		watcher:  watcher,
		log:      log,
		devices:  make(map[string]*Device),
		stopChan: make(chan struct{}),
	}, nil
}

// RegisterCallback はデバイスイベントのコールバックを登録する
func (dm *DeviceMonitor) RegisterCallback(cb DeviceCallback) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	dm.callbacks = append(dm.callbacks, cb)
}

// GetConnectedDevices は現在接続中のデバイス一覧を返す
func (dm *DeviceMonitor) GetConnectedDevices() []Device {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	devices := make([]Device, 0, len(dm.devices))
	for _, d := range dm.devices {
		devices = append(devices, *d)
	}
	return devices
}

// Start はデバイスの監視を開始する
func (dm *DeviceMonitor) Start() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	if dm.isRunning {
		return nil // すでに実行中
	}

	dm.log.Info().Msg("デバイスモニターを開始します")
	dm.isRunning = true

	// 監視対象のディレクトリを追加
	for _, dir := range []string{"/dev/input", "/dev/input/by-id"} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			if err := dm.watcher.Add(dir); err != nil {
				dm.log.Warn().Err(err).Str("dir", dir).Msg("ディレクトリの監視に失敗しました")
			}
		}
	}

	// 初期デバイス一覧を取得
	devices, err := ScanTouchDevices()
	if err != nil {
		dm.log.Warn().Err(err).Msg("初期デバイス一覧の取得に失敗しました")
	} else {
		dm.log.Info().Int("count", len(devices)).Msg("初期デバイスを検出しました")
		for i := range devices {
			d := devices[i]
			dm.devices[d.Path] = &d
		}
	}

	// イベント監視ゴルーチンを起動
	go dm.watchEvents()

	return nil
}

// Stop はデバイスの監視を停止する
func (dm *DeviceMonitor) Stop() {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	if !dm.isRunning {
		return
	}

	dm.log.Info().Msg("デバイスモニターを停止します")
	close(dm.stopChan)
	dm.watcher.Close()
	dm.isRunning = false
}

// watchEvents はfsnotifyのイベントを処理する
func (dm *DeviceMonitor) watchEvents() {
	// 接続直後はノードの準備ができていないことがあるため少し待つ
	const settleDelay = 200 * time.Millisecond

	for {
		select {
		case <-dm.stopChan:
			return
		case ev, ok := <-dm.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			time.Sleep(settleDelay)
			dm.rescan()
		case err, ok := <-dm.watcher.Errors:
			if !ok {
				return
			}
			dm.log.Warn().Err(err).Msg("デバイス監視でエラーが発生しました")
		}
	}
}

// rescan は一覧を取り直して差分をコールバックに通知する
func (dm *DeviceMonitor) rescan() {
	devices, err := ScanTouchDevices()
	if err != nil {
		return
	}

	dm.mutex.Lock()
	current := make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		current[d.Path] = &d
	}

	var events []DeviceEvent
	for path, d := range current {
		if _, ok := dm.devices[path]; !ok {
			events = append(events, DeviceEvent{Type: DeviceAdded, Device: d, Path: path})
		}
	}
	for path, d := range dm.devices {
		if _, ok := current[path]; !ok {
			events = append(events, DeviceEvent{Type: DeviceRemoved, Device: d, Path: path})
		}
	}
	dm.devices = current
	callbacks := make([]DeviceCallback, len(dm.callbacks))
	copy(callbacks, dm.callbacks)
	dm.mutex.Unlock()

	for _, ev := range events {
		for _, cb := range callbacks {
			cb(ev)
		}
	}
}
