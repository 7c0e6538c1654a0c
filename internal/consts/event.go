package consts

// イベントタイプの定数（input-event-codes.hから）
const (
	Syn = 0x00 // 同期イベント
	Key = 0x01 // キーイベント
	Rel = 0x02 // 相対座標イベント
	Abs = 0x03 // 絶対座標イベント

	AbsX             = 0x00 // X軸の絶対座標
	AbsY             = 0x01 // Y軸の絶対座標
	AbsMtSlot        = 0x2f // マルチタッチスロット
	AbsMtTouchMajor  = 0x30 // タッチ領域の長径
	AbsMtTouchMinor  = 0x31 // タッチ領域の短径
	AbsMtOrientation = 0x34 // タッチの向き
	AbsMtPositionX   = 0x35 // マルチタッチのX座標
	AbsMtPositionY   = 0x36 // マルチタッチのY座標
	AbsMtToolType    = 0x37 // マルチタッチのツール種別
	AbsMtTrackingId  = 0x39 // タッチ追跡用ID
	AbsMtPressure    = 0x3a // タッチ圧力

	SynReport     = 0     // イベント報告の同期
	SynDropped    = 3     // イベント欠落の通知
	MouseBtnLeft  = 0x110 // マウス左ボタン
	MouseBtnRight = 0x111 // マウス右ボタン
	BtnTouch      = 0x14a // タッチイベント
	BtnToolFinger = 0x145 // 指によるタッチ
	BtnToolPen    = 0x140 // ペンによるタッチ
)

// マルチタッチのツール種別（input.hのMT_TOOL_*から）
const (
	MtToolFinger = 0 // 指
	MtToolPen    = 1 // ペン
	MtToolPalm   = 2 // 手のひら
)
