package features

import (
	"github.com/char5742/touchsampler/internal/motion"
)

// MotionFilter はイベントの最新サンプルの座標（x, y）を滑らかにします
// 最新サンプルが合成サンプルか生サンプルかは区別しません
type MotionFilter struct {
	smoothingFactor float64 // 0.0-1.0の範囲。1.0に近いほど滑らかになりますが、遅延が大きくなります
	warmUpCount     int
	// ポインターIDごとの前回値
	lastByID map[int32]*filterState
}

type filterState struct {
	lastX        float64
	lastY        float64
	currentCount int
}

// 新しいモーションフィルターを作成します
func NewMotionFilter(smoothingFactor float64, warmUpCount int) *MotionFilter {
	return &MotionFilter{
		smoothingFactor: smoothingFactor,
		warmUpCount:     warmUpCount,
		lastByID:        make(map[int32]*filterState),
	}
}

// Apply はイベントの最新サンプルの各ポインター座標にsmoothingを適用します
// リサンプルフラグなど座標以外には触れません
func (mf *MotionFilter) Apply(event *motion.MotionEvent) {
	if event.SampleCount() == 0 {
		return
	}
	last := event.SampleCount() - 1
	seen := make(map[int32]bool, event.PointerCount())

	for i := 0; i < event.PointerCount(); i++ {
		id := event.PointerProperties(i).ID
		seen[id] = true
		coords := event.HistoricalPointerCoords(last, i)
		x, y := float64(coords.X()), float64(coords.Y())

		state, ok := mf.lastByID[id]
		if !ok {
			// 初回はそのまま通して現在値を基準にする
			state = &filterState{lastX: x, lastY: y, currentCount: 1}
			mf.lastByID[id] = state
			continue
		}

		// ウォームアップ中はそのまま通す
		if state.currentCount < mf.warmUpCount {
			state.currentCount++
			state.lastX = x
			state.lastY = y
			continue
		}

		// smoothingの適用
		f := mf.smoothingFactor
		newX := x*(1.0-f) + state.lastX*f
		newY := y*(1.0-f) + state.lastY*f
		state.lastX = newX
		state.lastY = newY

		coords.SetAxisValue(motion.AxisX, float32(newX))
		coords.SetAxisValue(motion.AxisY, float32(newY))
		event.SetPointerCoords(last, i, coords)
	}

	// 離れたポインターの状態は破棄する
	for id := range mf.lastByID {
		if !seen[id] {
			delete(mf.lastByID, id)
		}
	}
}

// フィルターの状態をリセットします
func (mf *MotionFilter) Reset() {
	mf.lastByID = make(map[int32]*filterState)
}
