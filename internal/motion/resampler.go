package motion

import (
	"time"

	"github.com/rs/zerolog"
)

// リサンプリングの時間定数。値は挙動の一部であり変更不可
const (
	// ResampleLatency はフレーム時刻からターゲット時刻を求める際の遅延
	ResampleLatency = 5 * time.Millisecond

	// ResampleMinDelta はリサンプリングに必要な最小サンプル間隔
	ResampleMinDelta = 2 * time.Millisecond

	// ResampleMaxDelta は外挿を許す最大サンプル間隔
	ResampleMaxDelta = 20 * time.Millisecond

	// ResampleMaxPrediction は外挿で未来へ進める最大距離
	ResampleMaxPrediction = 8 * time.Millisecond
)

// 保持する直近サンプルの数。外挿には2点あれば足りる
const latestSamplesCapacity = 2

// Resampler はモーションイベントをリサンプリングするインターフェース
//
// ResampleMotionEvent は event を resampleTime でリサンプリングしようと
// 試みる。resampleTime は event の最新サンプル時刻より後でなければ
// ならない。リサンプリングが行われる場合、event の末尾にサンプルが
// ちょうど1つ追加され、他のフィールドは変更されない。行われない場合、
// event は一切変更されない
type Resampler interface {
	ResampleMotionEvent(resampleTime time.Duration, event *MotionEvent, futureSample *InputMessage)
}

// LegacyResampler は線形補間・線形外挿によるリサンプラー
//
// futureSample があれば補間し、なければ直近2サンプルから外挿する。
// 外挿では resampleTime が遠すぎる場合により近い時刻が使われる。
// 呼び出しは直列であることを前提とし、内部で同期は行わない
type LegacyResampler struct {
	log zerolog.Logger

	// 直前に観測したイベントのデバイスID。デバイスが替わったら履歴を捨てる
	previousDeviceID    int32
	hasPreviousDeviceID bool

	// イベントから取り込んだ直近サンプル。呼び出しごとに更新される
	latestSamples *RingBuffer[Sample]
}

// NewLegacyResampler は新しいリサンプラーを作成する
// 拒否理由の診断はロガーのDebugレベルが有効なときだけ出力される
func NewLegacyResampler(log zerolog.Logger) *LegacyResampler {
	return &LegacyResampler{
		log:           log,
		latestSamples: NewRingBuffer[Sample](latestSamplesCapacity),
	}
}

// lerp は a と b を alpha で線形補間する
func lerp(a, b, alpha float32) float32 {
	return a + alpha*(b-a)
}

// millis はナノ秒間隔をミリ秒の浮動小数に変換する
// 比率計算は確立された数値挙動を保つためミリ秒単位で行う
func millis(d time.Duration) float32 {
	return float32(d) / float32(time.Millisecond)
}

// calculateResampledCoords は2端点の座標から合成座標を求める
// X/Y 以外の軸は alpha が 1 未満なら a、1 以上なら b から引き継ぐ
func calculateResampledCoords(a, b PointerCoords, alpha float32) PointerCoords {
	resampled := a
	if alpha >= 1 {
		resampled = b
	}
	resampled.IsResampled = true
	resampled.SetAxisValue(AxisX, lerp(a.X(), b.X(), alpha))
	resampled.SetAxisValue(AxisY, lerp(a.Y(), b.Y(), alpha))
	return resampled
}

// updateLatestSamples はイベント末尾の最大2サンプルを履歴に取り込む
// 各サンプルは全ポインターの属性と座標を時系列順に保持する
func (r *LegacyResampler) updateLatestSamples(event *MotionEvent) {
	numSamples := event.SampleCount()
	first := numSamples - latestSamplesCapacity
	if first < 0 {
		first = 0
	}
	for i := first; i < numSamples; i++ {
		pointers := make([]Pointer, event.PointerCount())
		for j := range pointers {
			pointers[j] = Pointer{
				Properties: event.PointerProperties(j),
				Coords:     event.HistoricalPointerCoords(i, j),
			}
		}
		r.latestSamples.PushBack(Sample{
			EventTime: event.HistoricalEventTime(i),
			Pointers:  pointers,
		})
	}
}

// canResamplePointers は target の各ポインターが auxiliary と対応して
// いて、かつリサンプリング可能なツール種別かを検査する
func (r *LegacyResampler) canResamplePointers(target, auxiliary *Sample) bool {
	if len(target.Pointers) > len(auxiliary.Pointers) {
		r.log.Debug().Msg("リサンプリングなし: 相手側サンプルのポインター数が不足しています")
		return false
	}
	for i := range target.Pointers {
		tp := target.Pointers[i].Properties
		ap := auxiliary.Pointers[i].Properties
		if tp.ID != ap.ID {
			r.log.Debug().Int32("target", tp.ID).Int32("auxiliary", ap.ID).
				Msg("リサンプリングなし: ポインターIDが一致しません")
			return false
		}
		if tp.ToolType != ap.ToolType {
			r.log.Debug().Stringer("target", tp.ToolType).Stringer("auxiliary", ap.ToolType).
				Msg("リサンプリングなし: ツール種別が一致しません")
			return false
		}
		if !tp.ToolType.CanResample() {
			r.log.Debug().Stringer("tool", tp.ToolType).
				Msg("リサンプリングなし: リサンプリング対象外のツール種別です")
			return false
		}
	}
	return true
}

// canInterpolate は補間の前提条件を検査する
func (r *LegacyResampler) canInterpolate(future *Sample) bool {
	if r.latestSamples.Size() == 0 {
		r.log.Error().Msg("リサンプリングなし: 補間には直近サンプルが必要です")
		return false
	}
	past := r.latestSamples.Back()
	if !r.canResamplePointers(&past, future) {
		return false
	}
	delta := future.EventTime - past.EventTime
	if delta < ResampleMinDelta {
		r.log.Debug().Dur("delta", delta).Msg("リサンプリングなし: サンプル間隔が小さすぎます")
		return false
	}
	return true
}

// attemptInterpolation は直近サンプルと未来サンプルの間を線形補間する
// resampleTime が future より後でも alpha は丸めない。その場合は
// past→future の直線が延長される
func (r *LegacyResampler) attemptInterpolation(resampleTime time.Duration, future Sample) *Sample {
	if !r.canInterpolate(&future) {
		return nil
	}
	past := r.latestSamples.Back()
	delta := future.EventTime - past.EventTime
	alpha := millis(resampleTime-past.EventTime) / millis(delta)

	pointers := make([]Pointer, len(past.Pointers))
	for i := range pointers {
		pointers[i] = Pointer{
			Properties: past.Pointers[i].Properties,
			Coords: calculateResampledCoords(past.Pointers[i].Coords,
				future.Pointers[i].Coords, alpha),
		}
	}
	return &Sample{EventTime: resampleTime, Pointers: pointers}
}

// canExtrapolate は外挿の前提条件を検査する
func (r *LegacyResampler) canExtrapolate() bool {
	if r.latestSamples.Size() < latestSamplesCapacity {
		r.log.Debug().Msg("リサンプリングなし: 外挿に足るサンプルがありません")
		return false
	}
	past := r.latestSamples.At(r.latestSamples.Size() - 2)
	present := r.latestSamples.Back()
	if !r.canResamplePointers(&present, &past) {
		return false
	}
	delta := present.EventTime - past.EventTime
	if delta < ResampleMinDelta {
		r.log.Debug().Dur("delta", delta).Msg("リサンプリングなし: サンプル間隔が小さすぎます")
		return false
	}
	if delta > ResampleMaxDelta {
		r.log.Debug().Dur("delta", delta).Msg("リサンプリングなし: サンプル間隔が大きすぎます")
		return false
	}
	return true
}

// attemptExtrapolation は直近2サンプルの直線上に外挿する
// resampleTime が遠すぎる場合は予測上限の時刻に丸める
func (r *LegacyResampler) attemptExtrapolation(resampleTime time.Duration) *Sample {
	if !r.canExtrapolate() {
		return nil
	}
	past := r.latestSamples.At(r.latestSamples.Size() - 2)
	present := r.latestSamples.Back()
	delta := present.EventTime - past.EventTime

	// 外挿できる最遠の未来時刻。resampleTime がこれを超える場合は
	// この時刻をターゲットとして使う
	maxPrediction := delta / 2
	if maxPrediction > ResampleMaxPrediction {
		maxPrediction = ResampleMaxPrediction
	}
	farthestPrediction := present.EventTime + maxPrediction
	newResampleTime := resampleTime
	if resampleTime > farthestPrediction {
		newResampleTime = farthestPrediction
		r.log.Debug().Dur("requested", resampleTime-present.EventTime).
			Dur("adjusted", farthestPrediction-present.EventTime).
			Msg("ターゲット時刻が未来すぎるため予測距離を短縮します")
	}
	alpha := millis(newResampleTime-past.EventTime) / millis(delta)

	pointers := make([]Pointer, len(present.Pointers))
	for i := range pointers {
		pointers[i] = Pointer{
			Properties: present.Pointers[i].Properties,
			Coords: calculateResampledCoords(past.Pointers[i].Coords,
				present.Pointers[i].Coords, alpha),
		}
	}
	return &Sample{EventTime: newResampleTime, Pointers: pointers}
}

// addSampleToMotionEvent は合成サンプルをイベント末尾に追加する
// イベントIDは維持され、他のフィールドには触れない
func addSampleToMotionEvent(sample *Sample, event *MotionEvent) {
	coords := make([]PointerCoords, len(sample.Pointers))
	for i := range coords {
		coords[i] = sample.Pointers[i].Coords
	}
	event.AddSample(sample.EventTime, coords, event.ID)
}

// ResampleMotionEvent は event を resampleTime でリサンプリングする
// 成功時はサンプルが1つだけ追加される。どの条件が欠けても event には
// 一切手を付けずに戻る
func (r *LegacyResampler) ResampleMotionEvent(resampleTime time.Duration, event *MotionEvent, futureSample *InputMessage) {
	if event == nil || event.SampleCount() == 0 {
		r.log.Error().Msg("リサンプリングなし: イベントにサンプルがありません")
		return
	}

	if r.hasPreviousDeviceID && r.previousDeviceID != event.DeviceID {
		r.latestSamples.Clear()
	}
	r.previousDeviceID = event.DeviceID
	r.hasPreviousDeviceID = true

	r.updateLatestSamples(event)

	if resampleTime <= event.EventTime() {
		r.log.Debug().Dur("resampleTime", resampleTime).Dur("eventTime", event.EventTime()).
			Msg("リサンプリングなし: ターゲット時刻が最新サンプルより前です")
		return
	}

	var sample *Sample
	if futureSample != nil {
		sample = r.attemptInterpolation(resampleTime, futureSample.sample())
	} else {
		sample = r.attemptExtrapolation(resampleTime)
	}
	if sample != nil {
		addSampleToMotionEvent(sample, event)
	}
}
