package motion

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// 座標比較の許容誤差
const epsilon = 0.001

// testPointer はテスト入力を簡潔に書くためのポインター表現
type testPointer struct {
	id   int32
	tool ToolType
	x, y float32
}

func (p testPointer) properties() PointerProperties {
	// tool 未指定はゼロ値の ToolTypeUnknown（リサンプリング対象）になる
	return PointerProperties{ID: p.id, ToolType: p.tool}
}

func (p testPointer) coords() PointerCoords {
	var c PointerCoords
	c.SetAxisValue(AxisX, p.x)
	c.SetAxisValue(AxisY, p.y)
	return c
}

// inputSample は1サンプル分のテスト入力
type inputSample struct {
	eventTime time.Duration
	pointers  []testPointer
}

// message は未来サンプルとして渡す InputMessage に変換する
func (s inputSample) message() *InputMessage {
	msg := &InputMessage{EventTime: s.eventTime}
	for _, p := range s.pointers {
		msg.Pointers = append(msg.Pointers, Pointer{
			Properties: p.properties(),
			Coords:     p.coords(),
		})
	}
	return msg
}

// inputStream は複数サンプルからモーションイベントを組み立てる
type inputStream struct {
	samples  []inputSample
	action   int32
	deviceID int32
}

func (st inputStream) motionEvent() *MotionEvent {
	first := st.samples[0]
	props := make([]PointerProperties, len(first.pointers))
	coords := make([]PointerCoords, len(first.pointers))
	for i, p := range first.pointers {
		props[i] = p.properties()
		coords[i] = p.coords()
	}
	event := NewMotionEvent(st.action, st.deviceID, props, first.eventTime, coords)
	for _, s := range st.samples[1:] {
		c := make([]PointerCoords, len(s.pointers))
		for i, p := range s.pointers {
			c[i] = p.coords()
		}
		event.AddSample(s.eventTime, c, event.ID)
	}
	return event
}

func newTestResampler() *LegacyResampler {
	return NewLegacyResampler(zerolog.Nop())
}

// assertMetadataUnchanged はサンプル追加以外のフィールドが変わって
// いないことを検査する
func assertMetadataUnchanged(t *testing.T, before, after *MotionEvent) {
	t.Helper()
	if before.DeviceID != after.DeviceID {
		t.Errorf("DeviceID が変化しました: %d -> %d", before.DeviceID, after.DeviceID)
	}
	if before.Action != after.Action {
		t.Errorf("Action が変化しました: %d -> %d", before.Action, after.Action)
	}
	if before.ActionButton != after.ActionButton {
		t.Errorf("ActionButton が変化しました: %d -> %d", before.ActionButton, after.ActionButton)
	}
	if before.ButtonState != after.ButtonState {
		t.Errorf("ButtonState が変化しました: %d -> %d", before.ButtonState, after.ButtonState)
	}
	if before.Flags != after.Flags {
		t.Errorf("Flags が変化しました: %d -> %d", before.Flags, after.Flags)
	}
	if before.EdgeFlags != after.EdgeFlags {
		t.Errorf("EdgeFlags が変化しました: %d -> %d", before.EdgeFlags, after.EdgeFlags)
	}
	if before.Classification != after.Classification {
		t.Errorf("Classification が変化しました: %d -> %d", before.Classification, after.Classification)
	}
	if before.PointerCount() != after.PointerCount() {
		t.Errorf("PointerCount が変化しました: %d -> %d", before.PointerCount(), after.PointerCount())
	}
	if before.MetaState != after.MetaState {
		t.Errorf("MetaState が変化しました: %d -> %d", before.MetaState, after.MetaState)
	}
	if before.Source != after.Source {
		t.Errorf("Source が変化しました: %d -> %d", before.Source, after.Source)
	}
	if before.XPrecision != after.XPrecision {
		t.Errorf("XPrecision が変化しました: %f -> %f", before.XPrecision, after.XPrecision)
	}
	if before.YPrecision != after.YPrecision {
		t.Errorf("YPrecision が変化しました: %f -> %f", before.YPrecision, after.YPrecision)
	}
	if before.DownTime != after.DownTime {
		t.Errorf("DownTime が変化しました: %v -> %v", before.DownTime, after.DownTime)
	}
	if before.DisplayID != after.DisplayID {
		t.Errorf("DisplayID が変化しました: %d -> %d", before.DisplayID, after.DisplayID)
	}
	if before.ID != after.ID {
		t.Errorf("ID が変化しました: %d -> %d", before.ID, after.ID)
	}
}

// assertResampled はサンプルが1つだけ追加され、末尾サンプルの座標が
// 期待値に近いことを検査する
func assertResampled(t *testing.T, original, resampled *MotionEvent, eventTime time.Duration, expected []testPointer) {
	t.Helper()
	assertMetadataUnchanged(t, original, resampled)
	if got, want := resampled.SampleCount(), original.SampleCount()+1; got != want {
		t.Fatalf("サンプル数が %d になるべきところ %d でした", want, got)
	}
	last := resampled.SampleCount() - 1
	if got := resampled.HistoricalEventTime(last); got != eventTime {
		t.Errorf("追加サンプルの時刻が %v になるべきところ %v でした", eventTime, got)
	}
	for i := range expected {
		coords := resampled.HistoricalPointerCoords(last, i)
		if !coords.IsResampled {
			t.Errorf("ポインター %d: IsResampled が true ではありません", i)
		}
		if got, want := resampled.PointerProperties(i), original.PointerProperties(i); got != want {
			t.Errorf("ポインター %d: 属性が変化しました: %+v -> %+v", i, want, got)
		}
		if diff := math.Abs(float64(coords.X() - expected[i].x)); diff > epsilon {
			t.Errorf("ポインター %d: X が %v になるべきところ %v でした", i, expected[i].x, coords.X())
		}
		if diff := math.Abs(float64(coords.Y() - expected[i].y)); diff > epsilon {
			t.Errorf("ポインター %d: Y が %v になるべきところ %v でした", i, expected[i].y, coords.Y())
		}
	}
}

// assertNotResampled はイベントが一切変更されていないことを検査する
func assertNotResampled(t *testing.T, original, after *MotionEvent) {
	t.Helper()
	assertMetadataUnchanged(t, original, after)
	if original.SampleCount() != after.SampleCount() {
		t.Fatalf("サンプル数が変化しました: %d -> %d", original.SampleCount(), after.SampleCount())
	}
	for i := 0; i < after.SampleCount(); i++ {
		if original.HistoricalEventTime(i) != after.HistoricalEventTime(i) {
			t.Errorf("サンプル %d の時刻が変化しました", i)
		}
		for j := 0; j < after.PointerCount(); j++ {
			if original.HistoricalPointerCoords(i, j) != after.HistoricalPointerCoords(i, j) {
				t.Errorf("サンプル %d ポインター %d の座標が変化しました", i, j)
			}
		}
	}
}

func TestLegacyResamplerSinglePointerInterpolation(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}}},
		action:  ActionMove,
	}.motionEvent()
	future := inputSample{15 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, future)

	assertResampled(t, original, event, 11*time.Millisecond,
		[]testPointer{{x: 1.2, y: 2.4}})
}

func TestLegacyResamplerInterpolationDeltaTooSmall(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}}},
		action:  ActionMove,
	}.motionEvent()
	future := inputSample{11 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(10500*time.Microsecond, event, future)

	assertNotResampled(t, original, event)
}

func TestLegacyResamplerSinglePointerExtrapolation(t *testing.T) {
	resampler := newTestResampler()

	// 1回目はサンプルが1つしかないため外挿できない
	first := inputStream{
		samples: []inputSample{{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}}},
		action:  ActionMove,
	}.motionEvent()
	firstOriginal := first.Clone()
	resampler.ResampleMotionEvent(9*time.Millisecond, first, nil)
	assertNotResampled(t, firstOriginal, first)

	// 2回目は履歴が2点そろうので外挿できる
	second := inputStream{
		samples: []inputSample{{10 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}}},
		action:  ActionMove,
	}.motionEvent()
	secondOriginal := second.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, second, nil)

	assertResampled(t, secondOriginal, second, 11*time.Millisecond,
		[]testPointer{{x: 2.2, y: 4.4}})
}

func TestLegacyResamplerExtrapolationHorizonClamp(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}},
			{25 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}},
		},
		action: ActionMove,
	}.motionEvent()

	// delta = 20ms なので最遠予測は 25 + min(10, 8) = 33ms
	original := event.Clone()
	resampler.ResampleMotionEvent(43*time.Millisecond, event, nil)

	assertResampled(t, original, event, 33*time.Millisecond,
		[]testPointer{{x: 2.4, y: 4.8}})
}

func TestLegacyResamplerExtrapolationRefusedOnPointerCountIncrease(t *testing.T) {
	resampler := newTestResampler()
	twoPointers := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}, {id: 1, x: 5, y: 5}}},
			{10 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 2}, {id: 1, x: 6, y: 6}}},
		},
		action: ActionMove,
	}.motionEvent()
	resampler.ResampleMotionEvent(11*time.Millisecond, twoPointers, nil)

	// ポインターが増えたイベントは直前履歴と対応が取れないので外挿しない
	threePointers := inputStream{
		samples: []inputSample{
			{15 * time.Millisecond, []testPointer{
				{id: 0, x: 3, y: 3}, {id: 1, x: 7, y: 7}, {id: 2, x: 9, y: 9}}},
		},
		action: ActionMove,
	}.motionEvent()
	original := threePointers.Clone()
	resampler.ResampleMotionEvent(17*time.Millisecond, threePointers, nil)

	assertNotResampled(t, original, threePointers)
}

func TestLegacyResamplerInterpolationAllowsMorePointersInFuture(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}, {id: 1, x: 5, y: 5}}},
		},
		action: ActionMove,
	}.motionEvent()
	// 未来サンプル側のポインターが多い分には対応が取れる
	future := inputSample{15 * time.Millisecond, []testPointer{
		{id: 0, x: 2, y: 2}, {id: 1, x: 6, y: 6}, {id: 2, x: 9, y: 9}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, future)

	assertResampled(t, original, event, 11*time.Millisecond,
		[]testPointer{{x: 1.2, y: 1.2}, {x: 5.2, y: 5.2}})
}

func TestLegacyResamplerPointerIDReorderRefused(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}, {id: 1, x: 5, y: 5}}},
		},
		action: ActionMove,
	}.motionEvent()
	future := inputSample{15 * time.Millisecond, []testPointer{
		{id: 1, x: 6, y: 6}, {id: 0, x: 2, y: 2}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, future)

	assertNotResampled(t, original, event)
}

func TestLegacyResamplerToolTypeMismatchRefused(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{10 * time.Millisecond, []testPointer{{id: 0, tool: ToolTypeFinger, x: 1, y: 1}}},
		},
		action: ActionMove,
	}.motionEvent()
	future := inputSample{15 * time.Millisecond, []testPointer{
		{id: 0, tool: ToolTypeStylus, x: 2, y: 2}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, future)

	assertNotResampled(t, original, event)
}

func TestLegacyResamplerNonResampleableToolRefused(t *testing.T) {
	for _, tool := range []ToolType{ToolTypePalm, ToolTypeEraser} {
		t.Run(tool.String(), func(t *testing.T) {
			resampler := newTestResampler()
			event := inputStream{
				samples: []inputSample{
					{10 * time.Millisecond, []testPointer{{id: 0, tool: tool, x: 1, y: 1}}},
				},
				action: ActionMove,
			}.motionEvent()
			future := inputSample{15 * time.Millisecond, []testPointer{
				{id: 0, tool: tool, x: 2, y: 2}}}.message()

			original := event.Clone()
			resampler.ResampleMotionEvent(11*time.Millisecond, event, future)
			assertNotResampled(t, original, event)

			// 外挿側も同様に拒否される
			second := inputStream{
				samples: []inputSample{
					{15 * time.Millisecond, []testPointer{{id: 0, tool: tool, x: 2, y: 2}}},
				},
				action: ActionMove,
			}.motionEvent()
			secondOriginal := second.Clone()
			resampler.ResampleMotionEvent(17*time.Millisecond, second, nil)
			assertNotResampled(t, secondOriginal, second)
		})
	}
}

func TestLegacyResamplerResampleableTools(t *testing.T) {
	for _, tool := range []ToolType{ToolTypeFinger, ToolTypeMouse, ToolTypeStylus, ToolTypeUnknown} {
		t.Run(tool.String(), func(t *testing.T) {
			resampler := newTestResampler()
			event := inputStream{
				samples: []inputSample{
					{10 * time.Millisecond, []testPointer{{id: 0, tool: tool, x: 1, y: 2}}},
				},
				action: ActionMove,
			}.motionEvent()
			future := inputSample{15 * time.Millisecond, []testPointer{
				{id: 0, tool: tool, x: 2, y: 4}}}.message()

			original := event.Clone()
			resampler.ResampleMotionEvent(11*time.Millisecond, event, future)
			assertResampled(t, original, event, 11*time.Millisecond,
				[]testPointer{{x: 1.2, y: 2.4}})
		})
	}
}

func TestLegacyResamplerDeviceChangeClearsWindow(t *testing.T) {
	resampler := newTestResampler()
	firstDevice := inputStream{
		samples: []inputSample{
			{4 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}},
			{8 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 2}}},
		},
		action:   ActionMove,
		deviceID: 0,
	}.motionEvent()
	resampler.ResampleMotionEvent(9*time.Millisecond, firstDevice, nil)

	// デバイスが替わると履歴は捨てられ、1サンプルでは外挿できない
	secondDevice := inputStream{
		samples: []inputSample{
			{12 * time.Millisecond, []testPointer{{id: 0, x: 3, y: 3}}},
		},
		action:   ActionMove,
		deviceID: 1,
	}.motionEvent()
	original := secondDevice.Clone()
	resampler.ResampleMotionEvent(13*time.Millisecond, secondDevice, nil)

	assertNotResampled(t, original, secondDevice)
}

func TestLegacyResamplerNotEnoughDataToExtrapolate(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}}},
		action:  ActionMove,
	}.motionEvent()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, nil)

	assertNotResampled(t, original, event)
}

func TestLegacyResamplerExtrapolationDeltaTooSmall(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}},
			{11 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 2}}},
		},
		action: ActionMove,
	}.motionEvent()

	original := event.Clone()
	resampler.ResampleMotionEvent(12*time.Millisecond, event, nil)

	assertNotResampled(t, original, event)
}

func TestLegacyResamplerExtrapolationDeltaTooLarge(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}},
			{26 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 2}}},
		},
		action: ActionMove,
	}.motionEvent()

	original := event.Clone()
	resampler.ResampleMotionEvent(28*time.Millisecond, event, nil)

	assertNotResampled(t, original, event)
}

func TestLegacyResamplerTargetTimeNotAhead(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}},
			{10 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 2}}},
		},
		action: ActionMove,
	}.motionEvent()
	future := inputSample{15 * time.Millisecond, []testPointer{{id: 0, x: 3, y: 3}}}.message()

	for _, target := range []time.Duration{10 * time.Millisecond, 8 * time.Millisecond} {
		original := event.Clone()
		resampler.ResampleMotionEvent(target, event, future)
		assertNotResampled(t, original, event)
	}
}

func TestLegacyResamplerEmptyEventRefused(t *testing.T) {
	resampler := newTestResampler()
	event := &MotionEvent{}
	resampler.ResampleMotionEvent(11*time.Millisecond, event, nil)
	if event.SampleCount() != 0 {
		t.Errorf("空イベントにサンプルが追加されました")
	}
}

func TestLegacyResamplerInterpolationBeyondFutureExtendsLine(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}}},
		action:  ActionMove,
	}.motionEvent()
	future := inputSample{15 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}}.message()

	// ターゲットが未来サンプルより後でも alpha は丸めず直線を延長する
	original := event.Clone()
	resampler.ResampleMotionEvent(17*time.Millisecond, event, future)

	assertResampled(t, original, event, 17*time.Millisecond,
		[]testPointer{{x: 2.4, y: 4.8}})
}

func TestLegacyResamplerMultiPointerInterpolation(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{10 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}, {id: 1, x: 10, y: 20}}},
		},
		action: ActionMove,
	}.motionEvent()
	future := inputSample{15 * time.Millisecond, []testPointer{
		{id: 0, x: 2, y: 4}, {id: 1, x: 20, y: 40}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, future)

	assertResampled(t, original, event, 11*time.Millisecond,
		[]testPointer{{x: 1.2, y: 2.4}, {x: 12, y: 24}})
}

func TestLegacyResamplerMultiPointerExtrapolation(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}, {id: 1, x: 10, y: 20}}},
			{10 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}, {id: 1, x: 20, y: 40}}},
		},
		action: ActionMove,
	}.motionEvent()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, nil)

	assertResampled(t, original, event, 11*time.Millisecond,
		[]testPointer{{x: 2.2, y: 4.4}, {x: 22, y: 44}})
}

func TestLegacyResamplerNonResampledAxesPreserved(t *testing.T) {
	const touchMajor = 1.0

	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}}},
		action:  ActionMove,
	}.motionEvent()

	// X/Y 以外の軸を持つサンプルを末尾に足しておく
	var coords PointerCoords
	coords.SetAxisValue(AxisX, 2)
	coords.SetAxisValue(AxisY, 2)
	coords.SetAxisValue(AxisTouchMajor, touchMajor)
	event.AddSample(10*time.Millisecond, []PointerCoords{coords}, event.ID)

	future := inputSample{15 * time.Millisecond, []testPointer{{id: 0, x: 3, y: 4}}}.message()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, future)

	assertResampled(t, original, event, 11*time.Millisecond,
		[]testPointer{{x: 2.2, y: 2.4}})

	// alpha < 1 なので追加サンプルは past 側の軸値を引き継ぐ
	last := event.SampleCount() - 1
	resampledCoords := event.HistoricalPointerCoords(last, 0)
	if got := resampledCoords.AxisValue(AxisTouchMajor); got != touchMajor {
		t.Errorf("TouchMajor が %v になるべきところ %v でした", touchMajor, got)
	}
}

func TestLegacyResamplerPreexistingSamplesUntouched(t *testing.T) {
	resampler := newTestResampler()
	event := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}},
			{10 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}},
		},
		action: ActionMove,
	}.motionEvent()

	original := event.Clone()
	resampler.ResampleMotionEvent(11*time.Millisecond, event, nil)

	if event.SampleCount() != original.SampleCount()+1 {
		t.Fatalf("サンプルが追加されていません")
	}
	for i := 0; i < original.SampleCount(); i++ {
		if original.HistoricalPointerCoords(i, 0) != event.HistoricalPointerCoords(i, 0) {
			t.Errorf("既存サンプル %d の座標が書き換えられました", i)
		}
		if event.HistoricalPointerCoords(i, 0).IsResampled {
			t.Errorf("既存サンプル %d にリサンプルフラグが立ちました", i)
		}
	}
}

func TestLegacyResamplerWindowRotatesAcrossEvents(t *testing.T) {
	resampler := newTestResampler()

	// 2サンプル入りのイベントで履歴を満たす
	first := inputStream{
		samples: []inputSample{
			{5 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 1}}},
			{10 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 2}}},
		},
		action: ActionMove,
	}.motionEvent()
	resampler.ResampleMotionEvent(11*time.Millisecond, first, nil)

	// 次のイベントの1サンプルが最古を押し出し、(10ms, 2) と (18ms, 4) の
	// 2点から外挿される
	second := inputStream{
		samples: []inputSample{
			{18 * time.Millisecond, []testPointer{{id: 0, x: 4, y: 4}}},
		},
		action: ActionMove,
	}.motionEvent()
	original := second.Clone()
	resampler.ResampleMotionEvent(20*time.Millisecond, second, nil)

	// delta = 8ms、alpha = (20-10)/8 = 1.25、x = 2 + 1.25*2 = 4.5
	assertResampled(t, original, second, 20*time.Millisecond,
		[]testPointer{{x: 4.5, y: 4.5}})
}

func TestLegacyResamplerExtrapolationContinuity(t *testing.T) {
	// ターゲット時刻を掃引したとき、出力座標は予測上限まで連続に増加し、
	// それ以降は一定になる
	base := inputStream{
		samples: []inputSample{
			{10 * time.Millisecond, []testPointer{{id: 0, x: 10, y: 100}}},
			{20 * time.Millisecond, []testPointer{{id: 0, x: 20, y: 200}}},
		},
		action: ActionMove,
	}

	// delta = 10ms なので最遠予測は 20 + min(5, 8) = 25ms
	const horizon = 25 * time.Millisecond

	var prevX float32
	first := true
	for target := 21 * time.Millisecond; target <= 40*time.Millisecond; target += 500 * time.Microsecond {
		resampler := newTestResampler()
		event := base.motionEvent()
		resampler.ResampleMotionEvent(target, event, nil)
		if event.SampleCount() != 3 {
			t.Fatalf("ターゲット %v: サンプルが追加されていません", target)
		}
		last := event.SampleCount() - 1

		effective := target
		if effective > horizon {
			effective = horizon
		}
		if got := event.HistoricalEventTime(last); got != effective {
			t.Fatalf("ターゲット %v: 追加サンプル時刻が %v になるべきところ %v でした", target, effective, got)
		}

		wantX := 10 + float32(effective-10*time.Millisecond)/float32(10*time.Millisecond)*10
		lastCoords := event.HistoricalPointerCoords(last, 0)
		gotX := lastCoords.X()
		if math.Abs(float64(gotX-wantX)) > epsilon {
			t.Fatalf("ターゲット %v: X が %v になるべきところ %v でした", target, wantX, gotX)
		}
		if !first && gotX+epsilon < prevX {
			t.Fatalf("ターゲット %v: X が逆行しました: %v -> %v", target, prevX, gotX)
		}
		prevX = gotX
		first = false
	}
}

func TestLegacyResamplerInvariantsOnRandomInputs(t *testing.T) {
	// 乱数入力に対して §8 の普遍条件を検査する。シード固定で決定的
	rng := rand.New(rand.NewSource(20240817))

	for i := 0; i < 500; i++ {
		resampler := newTestResampler()

		pointerCount := 1 + rng.Intn(3)
		pointers := make([]testPointer, pointerCount)
		for j := range pointers {
			pointers[j] = testPointer{
				id: int32(j),
				x:  rng.Float32() * 1000,
				y:  rng.Float32() * 1000,
			}
		}

		base := time.Duration(rng.Intn(100)) * time.Millisecond
		step := time.Duration(1+rng.Intn(25)) * time.Millisecond
		second := make([]testPointer, pointerCount)
		for j := range second {
			second[j] = testPointer{
				id: int32(j),
				x:  pointers[j].x + rng.Float32()*10,
				y:  pointers[j].y + rng.Float32()*10,
			}
		}

		event := inputStream{
			samples: []inputSample{
				{base, pointers},
				{base + step, second},
			},
			action:   ActionMove,
			deviceID: int32(rng.Intn(2)),
		}.motionEvent()
		event.Flags = rng.Int31()
		event.MetaState = rng.Int31()
		event.DownTime = base

		var future *InputMessage
		if rng.Intn(2) == 0 {
			futurePointers := make([]testPointer, pointerCount)
			for j := range futurePointers {
				futurePointers[j] = testPointer{
					id: int32(j),
					x:  second[j].x + rng.Float32()*10,
					y:  second[j].y + rng.Float32()*10,
				}
			}
			future = inputSample{base + step + time.Duration(rng.Intn(20))*time.Millisecond,
				futurePointers}.message()
		}

		target := base + step + time.Duration(rng.Intn(12))*time.Millisecond

		original := event.Clone()
		resampler.ResampleMotionEvent(target, event, future)

		assertMetadataUnchanged(t, original, event)

		added := event.SampleCount() - original.SampleCount()
		if added != 0 && added != 1 {
			t.Fatalf("ケース %d: サンプル数の増分が %d でした", i, added)
		}
		for s := 0; s < original.SampleCount(); s++ {
			for p := 0; p < original.PointerCount(); p++ {
				if original.HistoricalPointerCoords(s, p) != event.HistoricalPointerCoords(s, p) {
					t.Fatalf("ケース %d: 既存サンプルが書き換えられました", i)
				}
			}
		}
		if added == 1 {
			last := event.SampleCount() - 1
			for p := 0; p < event.PointerCount(); p++ {
				if !event.HistoricalPointerCoords(last, p).IsResampled {
					t.Fatalf("ケース %d: 追加サンプルにリサンプルフラグがありません", i)
				}
			}
		}
	}
}

func TestLegacyResamplerDeviceChangeIndependence(t *testing.T) {
	// デバイスが替わった後の出力は、替わった後の入力だけで決まる
	run := func(withHistory bool) *MotionEvent {
		resampler := newTestResampler()
		if withHistory {
			old := inputStream{
				samples: []inputSample{
					{4 * time.Millisecond, []testPointer{{id: 0, x: 100, y: 100}}},
					{8 * time.Millisecond, []testPointer{{id: 0, x: 200, y: 200}}},
				},
				action:   ActionMove,
				deviceID: 0,
			}.motionEvent()
			resampler.ResampleMotionEvent(9*time.Millisecond, old, nil)
		}
		event := inputStream{
			samples: []inputSample{
				{12 * time.Millisecond, []testPointer{{id: 0, x: 1, y: 2}}},
				{16 * time.Millisecond, []testPointer{{id: 0, x: 2, y: 4}}},
			},
			action:   ActionMove,
			deviceID: 1,
		}.motionEvent()
		resampler.ResampleMotionEvent(18*time.Millisecond, event, nil)
		return event
	}

	withHistory := run(true)
	withoutHistory := run(false)

	if withHistory.SampleCount() != withoutHistory.SampleCount() {
		t.Fatalf("サンプル数が一致しません: %d != %d",
			withHistory.SampleCount(), withoutHistory.SampleCount())
	}
	last := withHistory.SampleCount() - 1
	a := withHistory.HistoricalPointerCoords(last, 0)
	b := withoutHistory.HistoricalPointerCoords(last, 0)
	if a != b {
		t.Errorf("履歴の有無で出力が変わりました: %+v != %+v", a, b)
	}
}
