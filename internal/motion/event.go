package motion

import "time"

// モーションイベントのアクション定数
const (
	ActionDown   int32 = 0 // タッチ開始
	ActionUp     int32 = 1 // タッチ終了
	ActionMove   int32 = 2 // 移動
	ActionCancel int32 = 3 // キャンセル
)

// 入力ソースの定数
const (
	SourceClassPointer uint32 = 0x00000002 // ポインター系ソース
	SourceTouchscreen  uint32 = 0x00001002 // タッチスクリーン
	SourceTouchpad     uint32 = 0x00100008 // タッチパッド
)

// Classification はジェスチャーの分類を表す
type Classification uint8

const (
	ClassificationNone             Classification = iota // 分類なし
	ClassificationAmbiguousGesture                       // 曖昧なジェスチャー
	ClassificationDeepPress                              // 強押し
)

// eventSample はイベント内部に保持する1サンプル分の座標列
type eventSample struct {
	eventTime time.Duration
	coords    []PointerCoords
}

// MotionEvent はポインターの移動イベントを表す構造体
// 1つ以上のサンプル（履歴＋最新）を時系列順に保持する
// 全サンプルのポインター数は PointerCount に一致する
type MotionEvent struct {
	ID             int32
	DeviceID       int32
	Source         uint32
	DisplayID      int32
	Action         int32
	ActionButton   int32
	ButtonState    int32
	Flags          int32
	EdgeFlags      int32
	Classification Classification
	MetaState      int32
	XPrecision     float32
	YPrecision     float32
	DownTime       time.Duration

	pointerProperties []PointerProperties
	samples           []eventSample
}

// NewMotionEvent は最初のサンプルを持つモーションイベントを作成する
// coords の要素数は properties の要素数と一致しなければならない
func NewMotionEvent(action int32, deviceID int32, properties []PointerProperties, eventTime time.Duration, coords []PointerCoords) *MotionEvent {
	props := make([]PointerProperties, len(properties))
	copy(props, properties)
	c := make([]PointerCoords, len(coords))
	copy(c, coords)
	return &MotionEvent{
		Action:            action,
		DeviceID:          deviceID,
		Source:            SourceClassPointer,
		pointerProperties: props,
		samples:           []eventSample{{eventTime: eventTime, coords: c}},
	}
}

// PointerCount はイベントのポインター数を返す
func (e *MotionEvent) PointerCount() int {
	return len(e.pointerProperties)
}

// SampleCount は履歴を含むサンプル数を返す
func (e *MotionEvent) SampleCount() int {
	return len(e.samples)
}

// PointerProperties は指定インデックスのポインター属性を返す
func (e *MotionEvent) PointerProperties(pointerIndex int) PointerProperties {
	return e.pointerProperties[pointerIndex]
}

// HistoricalEventTime は指定サンプルのイベント時刻を返す
// sampleIndex は 0 が最古、SampleCount()-1 が最新
func (e *MotionEvent) HistoricalEventTime(sampleIndex int) time.Duration {
	return e.samples[sampleIndex].eventTime
}

// HistoricalPointerCoords は指定サンプル・指定ポインターの座標を返す
func (e *MotionEvent) HistoricalPointerCoords(sampleIndex, pointerIndex int) PointerCoords {
	return e.samples[sampleIndex].coords[pointerIndex]
}

// EventTime は最新サンプルのイベント時刻を返す
func (e *MotionEvent) EventTime() time.Duration {
	return e.samples[len(e.samples)-1].eventTime
}

// PointerCoords は最新サンプルの指定ポインターの座標を返す
func (e *MotionEvent) PointerCoords(pointerIndex int) PointerCoords {
	return e.samples[len(e.samples)-1].coords[pointerIndex]
}

// SetPointerCoords は指定サンプル・指定ポインターの座標を差し替える
// リサンプラーはこの操作を使わない。消費側の後段処理向け
func (e *MotionEvent) SetPointerCoords(sampleIndex, pointerIndex int, coords PointerCoords) {
	e.samples[sampleIndex].coords[pointerIndex] = coords
}

// AddSample はイベントの末尾にサンプルを1つ追加する
// coords はポインター順に並んだ座標列で、要素数は PointerCount() と
// 一致しなければならない。id はイベントIDを維持するために渡す
func (e *MotionEvent) AddSample(eventTime time.Duration, coords []PointerCoords, id int32) {
	c := make([]PointerCoords, len(coords))
	copy(c, coords)
	e.samples = append(e.samples, eventSample{eventTime: eventTime, coords: c})
	e.ID = id
}

// Clone はイベントの完全な複製を返す
func (e *MotionEvent) Clone() *MotionEvent {
	clone := *e
	clone.pointerProperties = make([]PointerProperties, len(e.pointerProperties))
	copy(clone.pointerProperties, e.pointerProperties)
	clone.samples = make([]eventSample, len(e.samples))
	for i, s := range e.samples {
		coords := make([]PointerCoords, len(s.coords))
		copy(coords, s.coords)
		clone.samples[i] = eventSample{eventTime: s.eventTime, coords: coords}
	}
	return &clone
}
