package api

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/char5742/touchsampler/internal/config"
	"github.com/char5742/touchsampler/internal/features"
	"github.com/char5742/touchsampler/internal/monitoring"
	"github.com/char5742/touchsampler/internal/motion"
)

// Stats はAPIで公開するパイプラインの集計値
type Stats struct {
	EventsIn       int64 `json:"events_in"`
	SamplesIn      int64 `json:"samples_in"`
	Interpolated   int64 `json:"interpolated"`
	Extrapolated   int64 `json:"extrapolated"`
	Refused        int64 `json:"refused"`
	HorizonClamped int64 `json:"horizon_clamped"`
}

type statCounters struct {
	eventsIn       atomic.Int64
	samplesIn      atomic.Int64
	interpolated   atomic.Int64
	extrapolated   atomic.Int64
	refused        atomic.Int64
	horizonClamped atomic.Int64
}

func (c *statCounters) snapshot() Stats {
	return Stats{
		EventsIn:       c.eventsIn.Load(),
		SamplesIn:      c.samplesIn.Load(),
		Interpolated:   c.interpolated.Load(),
		Extrapolated:   c.extrapolated.Load(),
		Refused:        c.refused.Load(),
		HorizonClamped: c.horizonClamped.Load(),
	}
}

// ResampleService はタッチ入力のリサンプリングパイプラインを管理する構造体
// 入力デバイス → リサンプラー → 仮想タッチパッド の流れを駆動する
type ResampleService struct {
	cfg         *config.Config
	log         zerolog.Logger
	metrics     *monitoring.Metrics
	broadcaster *Broadcaster

	stopChan    chan struct{}
	doneChan    chan struct{}
	running     bool
	statusMutex sync.RWMutex

	source    features.TouchSource
	touchPad  features.TouchPad
	resampler motion.Resampler
	filter    *features.MotionFilter
	monitor   *features.DeviceMonitor

	stats statCounters
}

// NewResampleService は新しいリサンプリングサービスを作成する
func NewResampleService(cfg *config.Config, log zerolog.Logger, metrics *monitoring.Metrics, broadcaster *Broadcaster) *ResampleService {
	return &ResampleService{
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
		broadcaster: broadcaster,
	}
}

// Start はリサンプリングサービスを開始する
func (s *ResampleService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return fmt.Errorf("サービスは既に実行中です")
	}

	// 入力元タッチデバイスの決定
	devicePath := s.cfg.Source.PreferredDevice
	if devicePath == "" {
		devices, err := features.ScanTouchDevices()
		if err != nil {
			return fmt.Errorf("タッチデバイスの検出に失敗しました: %w", err)
		}
		if len(devices) == 0 {
			return fmt.Errorf("タッチデバイスが見つかりませんでした")
		}
		devicePath = devices[0].Path
		s.log.Info().Str("device", devices[0].Name).Msg("タッチデバイスを自動選択しました")
	}

	source, err := features.OpenTouchSource(devicePath, s.log)
	if err != nil {
		return fmt.Errorf("タッチデバイスのオープンに失敗しました: %w", err)
	}
	s.source = source

	if s.cfg.Source.Grab {
		if err := source.Grab(); err != nil {
			_ = source.Close()
			return err
		}
	}

	// 仮想タッチパッドデバイスの作成
	padDevice, err := features.CreateTouchPad("/dev/uinput", []byte("TouchSampler Pad"),
		s.cfg.TouchPad.MinX, s.cfg.TouchPad.MaxX, s.cfg.TouchPad.MinY, s.cfg.TouchPad.MaxY)
	if err != nil {
		_ = source.Close()
		return fmt.Errorf("仮想タッチパッドの作成に失敗しました: %w", err)
	}
	s.touchPad = padDevice

	s.resampler = motion.NewLegacyResampler(s.log.With().Str("component", "resampler").Logger())

	if s.cfg.Motion.FilterEnabled {
		s.filter = features.NewMotionFilter(s.cfg.Motion.FilterSmoothingFactor, s.cfg.Motion.FilterWarmUpCount)
	}

	// デバイスの抜き差しを監視する
	monitor, err := features.NewDeviceMonitor(s.log)
	if err == nil {
		s.monitor = monitor
		monitor.RegisterCallback(func(ev features.DeviceEvent) {
			switch ev.Type {
			case features.DeviceAdded:
				s.log.Info().Str("path", ev.Path).Msg("タッチデバイスが接続されました")
			case features.DeviceRemoved:
				s.log.Info().Str("path", ev.Path).Msg("タッチデバイスが切断されました")
			}
		})
		if err := monitor.Start(); err != nil {
			s.log.Warn().Err(err).Msg("デバイスモニターの開始に失敗しました")
		}
	}

	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.running = true

	go s.run()

	s.log.Info().Str("device", devicePath).Dur("interval", s.cfg.Frame.Interval).
		Msg("リサンプリングサービスを開始しました")
	return nil
}

// Stop はリサンプリングサービスを停止する
func (s *ResampleService) Stop() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if !s.running {
		return fmt.Errorf("サービスは実行されていません")
	}

	close(s.stopChan)
	<-s.doneChan

	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}
	if s.touchPad != nil {
		_ = s.touchPad.Close()
		s.touchPad = nil
	}
	if s.source != nil {
		_ = s.source.Close()
		s.source = nil
	}

	s.running = false
	s.log.Info().Msg("リサンプリングサービスを停止しました")
	return nil
}

// IsRunning はサービスが実行中かを返す
func (s *ResampleService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// Stats は集計値のスナップショットを返す
func (s *ResampleService) Stats() Stats {
	return s.stats.snapshot()
}

// monotonicNow はCLOCK_MONOTONICの現在時刻を返す
// 入力デバイスのイベント時刻と同じクロックで比較できる
func monotonicNow() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
}

// run はフレーム周期でパイプラインを駆動する
func (s *ResampleService) run() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.cfg.Frame.Interval)
	defer ticker.Stop()

	var queue []*motion.MotionEvent

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			events, err := s.source.Poll()
			if err != nil {
				s.log.Warn().Err(err).Msg("入力イベントの読み取りに失敗しました")
				continue
			}
			queue = append(queue, events...)

			frameTime := monotonicNow()
			target := frameTime - s.cfg.Resampler.Latency

			for len(queue) > 0 {
				ev := queue[0]
				queue = queue[1:]

				// 次のイベントが既に届いていれば、その先頭サンプルを
				// 補間の未来側端点として使う
				var future *motion.InputMessage
				if len(queue) > 0 {
					future = futureMessage(queue[0])
				}

				s.processEvent(ev, target, future)
			}
		}
	}
}

// processEvent は1イベントをリサンプリングして仮想デバイスへ流す
func (s *ResampleService) processEvent(ev *motion.MotionEvent, target time.Duration, future *motion.InputMessage) {
	s.stats.eventsIn.Add(1)
	s.stats.samplesIn.Add(int64(ev.SampleCount()))
	s.metrics.EventsIn.Inc()
	s.metrics.SamplesIn.Add(float64(ev.SampleCount()))
	s.metrics.ActivePointers.Set(float64(ev.PointerCount()))

	if s.cfg.Resampler.Enabled {
		before := ev.SampleCount()
		s.resampler.ResampleMotionEvent(target, ev, future)
		if ev.SampleCount() > before {
			method := "extrapolation"
			if future != nil {
				method = "interpolation"
			}
			s.metrics.Resampled.WithLabelValues(method).Inc()
			if future != nil {
				s.stats.interpolated.Add(1)
			} else {
				s.stats.extrapolated.Add(1)
			}
			// 外挿で予測上限に丸められた場合、追加サンプルの時刻は
			// ターゲットより手前になる
			if ev.EventTime() < target {
				s.stats.horizonClamped.Add(1)
				s.metrics.HorizonClamped.Inc()
			}
		} else {
			s.stats.refused.Add(1)
			s.metrics.Refused.Inc()
		}
	}

	if s.filter != nil {
		s.filter.Apply(ev)
	}

	if err := s.touchPad.WriteMotionEvent(ev); err != nil {
		s.log.Warn().Err(err).Msg("仮想タッチパッドへの書き込みに失敗しました")
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(ev)
	}
}

// futureMessage はイベントの最初のサンプルを未来サンプルに変換する
func futureMessage(ev *motion.MotionEvent) *motion.InputMessage {
	msg := &motion.InputMessage{EventTime: ev.HistoricalEventTime(0)}
	for i := 0; i < ev.PointerCount(); i++ {
		msg.Pointers = append(msg.Pointers, motion.Pointer{
			Properties: ev.PointerProperties(i),
			Coords:     ev.HistoricalPointerCoords(0, i),
		})
	}
	return msg
}
