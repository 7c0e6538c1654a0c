package features

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/char5742/touchsampler/internal/consts"
	"github.com/char5742/touchsampler/internal/motion"
	"github.com/char5742/touchsampler/internal/utils"
)

// TouchPad はリサンプリング済みモーションイベントを書き込む
// 仮想の絶対座標入力デバイスを表現するインターフェース
type TouchPad interface {
	// WriteMotionEvent はイベントの最新サンプルをマルチタッチ
	// イベントとして書き込む
	WriteMotionEvent(event *motion.MotionEvent) error
	// ReleaseAll は全スロットのタッチを終了する
	ReleaseAll() error
	io.Closer
}

type virtualTouchPad struct {
	name       []byte
	deviceFile *os.File
	// trackingID → 割り当て済みスロット
	slotByID map[int32]int
	slotUsed [maxSlots]bool
}

// CreateTouchPad は新しい仮想タッチパッドデバイスを作成する
func CreateTouchPad(path string, name []byte, minX int32, maxX int32, minY int32, maxY int32) (TouchPad, error) {
	fd, err := createTouchPad(path, name, minX, maxX, minY, maxY)
	if err != nil {
		return nil, err
	}

	return &virtualTouchPad{
		name:       name,
		deviceFile: fd,
		slotByID:   make(map[int32]int),
	}, nil
}

func (vt *virtualTouchPad) Close() error {
	_ = vt.ReleaseAll()
	_ = releaseDevice(vt.deviceFile)
	return vt.deviceFile.Close()
}

func createTouchPad(path string, name []byte, minX int32, maxX int32, minY int32, maxY int32) (*os.File, error) {
	deviceFile, err := createDeviceFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not create absolute axis input device: %v", err)
	}

	// キー入力イベント(EV_KEY)を登録する
	// これによりタッチ入力などの検出が可能になる
	err = registerDevice(deviceFile, uintptr(consts.Key))
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("キー入力イベント(EV_KEY)の登録に失敗しました: %v", err)
	}

	// キー入力の種類（タッチ検出など）を登録する
	for _, ev := range []int{
		consts.BtnTouch,      // 画面タッチの検出
		consts.BtnToolFinger, // 指の接触検出
		consts.BtnToolPen,    // ペンの接触検出
	} {
		if err = utils.IOCtl(deviceFile, consts.SetKeyBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("キー入力種別の登録に失敗しました %v: %v", ev, err)
		}
	}

	// 絶対座標入力イベント(EV_ABS)を登録する
	err = registerDevice(deviceFile, uintptr(consts.Abs))
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("絶対座標入力イベント(EV_ABS)の登録に失敗しました: %v", err)
	}

	// タッチスクリーンのプロパティを設定する
	if err := utils.IOCtl(deviceFile, consts.SetPropBit, uintptr(consts.PropDirect)); err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("直接入力プロパティの設定に失敗しました: %v", err)
	}

	// X軸とY軸の座標を登録する
	for _, ev := range []int{consts.AbsX, consts.AbsY} {
		if err = utils.IOCtl(deviceFile, consts.SetAbsBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("座標軸の登録に失敗しました %v: %v", ev, err)
		}
	}

	// マルチタッチイベントを登録する
	for _, ev := range []int{
		consts.AbsMtSlot,       // スロット（指の識別子）
		consts.AbsMtPositionX,  // X座標
		consts.AbsMtPositionY,  // Y座標
		consts.AbsMtTrackingId, // タッチの追跡ID
		consts.AbsMtTouchMajor, // タッチ領域の主軸
		consts.AbsMtPressure,   // タッチ圧力
	} {
		if err = utils.IOCtl(deviceFile, consts.SetAbsBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("マルチタッチイベントの登録に失敗しました %v: %v", ev, err)
		}
	}

	var absMin [consts.AbsSize]int32
	var absMax [consts.AbsSize]int32

	absMin[consts.AbsX] = minX
	absMax[consts.AbsX] = maxX
	absMin[consts.AbsY] = minY
	absMax[consts.AbsY] = maxY

	absMin[consts.AbsMtSlot] = 0
	absMax[consts.AbsMtSlot] = maxSlots - 1

	absMin[consts.AbsMtPositionX] = minX
	absMax[consts.AbsMtPositionX] = maxX
	absMin[consts.AbsMtPositionY] = minY
	absMax[consts.AbsMtPositionY] = maxY

	absMin[consts.AbsMtTouchMajor] = 0
	absMax[consts.AbsMtTouchMajor] = 255

	absMin[consts.AbsMtPressure] = 0
	absMax[consts.AbsMtPressure] = 255

	userDev := UserDev{
		Name: toUinputName(name),
		ID: InputID{
			Bustype: consts.BusUsb,
			Vendor:  0x4711,
			Product: 0x0817,
			Version: 1,
		},
		Absmin: absMin,
		Absmax: absMax,
	}

	fd, err := createUsbDevice(deviceFile, userDev)
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("USBデバイスの作成に失敗しました: %v", err)
	}

	return fd, nil
}

// WriteMotionEvent はイベントの最新サンプル（リサンプリング済みを含む）を
// スロットに割り当てて書き込む
func (vt *virtualTouchPad) WriteMotionEvent(event *motion.MotionEvent) error {
	if event.SampleCount() == 0 {
		return errors.New("イベントにサンプルがありません")
	}

	var events []Event
	seen := make(map[int32]bool, event.PointerCount())
	hadTouches := len(vt.slotByID) > 0

	for i := 0; i < event.PointerCount(); i++ {
		props := event.PointerProperties(i)
		coords := event.PointerCoords(i)
		seen[props.ID] = true

		slot, ok := vt.slotByID[props.ID]
		down := false
		if !ok {
			slot = vt.allocateSlot(props.ID)
			if slot < 0 {
				// スロットが尽きたポインターは落とす
				continue
			}
			down = true
		}

		events = append(events,
			Event{Type: consts.Abs, Code: consts.AbsMtSlot, Value: int32(slot)},
		)
		if down {
			events = append(events,
				Event{Type: consts.Abs, Code: consts.AbsMtTrackingId, Value: props.ID},
			)
		}
		events = append(events,
			Event{Type: consts.Abs, Code: consts.AbsMtPositionX, Value: int32(coords.X())},
			Event{Type: consts.Abs, Code: consts.AbsMtPositionY, Value: int32(coords.Y())},
		)
		if coords.HasAxis(motion.AxisTouchMajor) {
			events = append(events,
				Event{Type: consts.Abs, Code: consts.AbsMtTouchMajor, Value: int32(coords.AxisValue(motion.AxisTouchMajor))},
			)
		}
		if coords.HasAxis(motion.AxisPressure) {
			events = append(events,
				Event{Type: consts.Abs, Code: consts.AbsMtPressure, Value: int32(coords.AxisValue(motion.AxisPressure) * 255)},
			)
		}
	}

	// 今回のイベントに含まれないポインターはタッチ終了として扱う
	for id, slot := range vt.slotByID {
		if seen[id] {
			continue
		}
		events = append(events,
			Event{Type: consts.Abs, Code: consts.AbsMtSlot, Value: int32(slot)},
			Event{Type: consts.Abs, Code: consts.AbsMtTrackingId, Value: -1},
		)
		vt.slotUsed[slot] = false
		delete(vt.slotByID, id)
	}

	if len(events) == 0 {
		return nil
	}
	if !hadTouches && len(vt.slotByID) > 0 {
		events = append(events, Event{Type: consts.Key, Code: consts.BtnTouch, Value: 1})
	}
	if hadTouches && len(vt.slotByID) == 0 {
		events = append(events, Event{Type: consts.Key, Code: consts.BtnTouch, Value: 0})
	}
	events = append(events, Event{Type: consts.Syn, Code: consts.SynReport, Value: 0})

	return writeEvents(vt.deviceFile, events)
}

// ReleaseAll は割り当て済みの全スロットを解放する
func (vt *virtualTouchPad) ReleaseAll() error {
	if len(vt.slotByID) == 0 {
		return nil
	}
	var events []Event
	for id, slot := range vt.slotByID {
		events = append(events,
			Event{Type: consts.Abs, Code: consts.AbsMtSlot, Value: int32(slot)},
			Event{Type: consts.Abs, Code: consts.AbsMtTrackingId, Value: -1},
		)
		vt.slotUsed[slot] = false
		delete(vt.slotByID, id)
	}
	events = append(events,
		Event{Type: consts.Key, Code: consts.BtnTouch, Value: 0},
		Event{Type: consts.Syn, Code: consts.SynReport, Value: 0},
	)
	return writeEvents(vt.deviceFile, events)
}

// allocateSlot は未使用スロットを割り当てる。空きがなければ -1
func (vt *virtualTouchPad) allocateSlot(trackingID int32) int {
	for i := range vt.slotUsed {
		if !vt.slotUsed[i] {
			vt.slotUsed[i] = true
			vt.slotByID[trackingID] = i
			return i
		}
	}
	return -1
}

// デバイスファイルを作成する
func createDeviceFile(path string) (fd *os.File, err error) {
	deviceFile, err := os.OpenFile(path, syscall.O_WRONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, errors.New("デバイスファイルを開くのに失敗しました")
	}
	return deviceFile, err
}

// デバイスを解放する
func releaseDevice(deviceFile *os.File) error {
	return utils.IOCtl(deviceFile, consts.DevDestroy, uintptr(0))
}

// デバイスを登録する
func registerDevice(deviceFile *os.File, evType uintptr) error {
	err := utils.IOCtl(deviceFile, consts.SetEvBit, evType)
	if err != nil {
		defer deviceFile.Close()
		err = releaseDevice(deviceFile)
		if err != nil {
			return fmt.Errorf("デバイスを解放するのに失敗しました: %v", err)
		}
		return fmt.Errorf("無効なファイルハンドルがutils.IOCtlから返されました: %v", err)
	}
	return nil
}

// USBデバイスを作成する
func createUsbDevice(deviceFile *os.File, dev UserDev) (fd *os.File, err error) {
	buf := new(bytes.Buffer)
	err = binary.Write(buf, binary.LittleEndian, dev)
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("ユーザーデバイスバッファの書き込みに失敗しました: %v", err)
	}
	_, err = deviceFile.Write(buf.Bytes())
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("デバイス構造体をデバイスファイルに書き込むのに失敗しました: %v", err)
	}

	err = utils.IOCtl(deviceFile, consts.DevCreate, uintptr(0))
	if err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("デバイスの作成に失敗しました: %v", err)
	}

	return deviceFile, err
}

// イベントを書き込む
func writeEvents(deviceFile *os.File, events []Event) error {
	for _, ev := range events {
		buf := new(bytes.Buffer)
		if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
			return fmt.Errorf("イベントをバッファに書き込むのに失敗しました: %v", err)
		}
		if _, err := deviceFile.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("イベントの書き込みに失敗しました: %v", err)
		}
	}
	return nil
}

// 名前をuinput用の固定長配列に変換する
func toUinputName(name []byte) (uinputName [consts.MaxNameSize]byte) {
	var fixedSizeName [consts.MaxNameSize]byte
	copy(fixedSizeName[:], name)
	return fixedSizeName
}
