package motion

import "time"

// ToolType はポインターのツール種別を表す列挙型
type ToolType uint8

// ツール種別の定数
const (
	ToolTypeUnknown ToolType = iota // 不明
	ToolTypeFinger                  // 指
	ToolTypeStylus                  // スタイラス
	ToolTypeMouse                   // マウス
	ToolTypeEraser                  // 消しゴム
	ToolTypePalm                    // 手のひら
)

// CanResample はこのツール種別がリサンプリング対象かどうかを返す
// 手のひらや消しゴムの軌跡は合成しない
func (t ToolType) CanResample() bool {
	switch t {
	case ToolTypeFinger, ToolTypeMouse, ToolTypeStylus, ToolTypeUnknown:
		return true
	default:
		return false
	}
}

func (t ToolType) String() string {
	switch t {
	case ToolTypeUnknown:
		return "unknown"
	case ToolTypeFinger:
		return "finger"
	case ToolTypeStylus:
		return "stylus"
	case ToolTypeMouse:
		return "mouse"
	case ToolTypeEraser:
		return "eraser"
	case ToolTypePalm:
		return "palm"
	}
	return "invalid"
}

// PointerProperties はポインターの恒久的な属性を表す構造体
// ID はひとつのインタラクションの間で安定している
type PointerProperties struct {
	ID       int32
	ToolType ToolType
}

// Pointer は1ポインター分の属性と座標の組
type Pointer struct {
	Properties PointerProperties
	Coords     PointerCoords
}

// Sample は全ポインターのある時刻におけるスナップショット
// Pointers の順序はトランスポートが使う順序と一致する
type Sample struct {
	EventTime time.Duration
	Pointers  []Pointer
}
