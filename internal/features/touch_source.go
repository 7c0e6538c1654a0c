package features

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"syscall"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/char5742/touchsampler/internal/consts"
	"github.com/char5742/touchsampler/internal/motion"
	"github.com/char5742/touchsampler/internal/utils"
)

// 同時に追跡するマルチタッチスロットの数
const maxSlots = 10

// TouchSource は物理タッチデバイスからモーションイベントを読み取るインターフェース
type TouchSource interface {
	// Poll は読み取れたフレームをモーションイベントにまとめて返す
	// 読み取るものがなければ空スライスを返す
	Poll() ([]*motion.MotionEvent, error)
	// DeviceID はこのデバイスの識別子を返す
	DeviceID() int32
	// Grab はデバイスを専有する
	Grab() error
	// Release は専有を解除する
	Release() error
	io.Closer
}

// slotState は1スロット分のタッチ状態
type slotState struct {
	active     bool
	trackingID int32
	tool       motion.ToolType
	x          float32
	y          float32
	pressure   float32
	touchMajor float32
}

type evdevTouchSource struct {
	file        *os.File
	log         zerolog.Logger
	deviceID    int32
	grabbed     bool
	currentSlot int32
	slots       [maxSlots]slotState
	lastActive  int
	downTime    time.Duration
	dropped     bool
}

// OpenTouchSource は指定されたパスのタッチデバイスを開く
// イベント時刻はモノトニッククロックに揃える
func OpenTouchSource(path string, log zerolog.Logger) (TouchSource, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("デバイスファイルを開くのに失敗しました: %w", err)
	}

	// イベント時刻をCLOCK_MONOTONICにする
	clockID := int32(unix.CLOCK_MONOTONIC)
	if err := utils.IOCtl(f, consts.EVIOCSCLOCKID, uintptr(unsafe.Pointer(&clockID))); err != nil {
		log.Warn().Err(err).Str("path", path).
			Msg("イベントクロックの設定に失敗しました。デフォルトのクロックを使用します")
	}

	var stat unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &stat); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("デバイス情報の取得に失敗しました: %w", err)
	}

	src := &evdevTouchSource{
		file:     f,
		log:      log,
		deviceID: int32(unix.Minor(uint64(stat.Rdev))),
	}
	for i := range src.slots {
		src.slots[i].trackingID = -1
	}
	return src, nil
}

func (s *evdevTouchSource) DeviceID() int32 {
	return s.deviceID
}

func (s *evdevTouchSource) Grab() error {
	if s.grabbed {
		return nil
	}
	if err := utils.IOCtl(s.file, consts.EVIOCGRAB, 1); err != nil {
		return fmt.Errorf("デバイスの専有に失敗しました: %w", err)
	}
	s.grabbed = true
	return nil
}

func (s *evdevTouchSource) Release() error {
	if !s.grabbed {
		return nil
	}
	if err := utils.IOCtl(s.file, consts.EVIOCGRAB, 0); err != nil {
		return fmt.Errorf("デバイスの専有解除に失敗しました: %w", err)
	}
	s.grabbed = false
	return nil
}

func (s *evdevTouchSource) Close() error {
	_ = s.Release()
	return s.file.Close()
}

// Poll は届いているイベントをすべて読み、SYN_REPORTごとのフレームを
// モーションイベントにまとめて返す。ポインター集合が同じ連続した
// 移動フレームはひとつのイベントの履歴サンプルになる
func (s *evdevTouchSource) Poll() ([]*motion.MotionEvent, error) {
	var events []*motion.MotionEvent

	const eventSize = 24 // syscall.Timeval(16) + Type(2) + Code(2) + Value(4)
	buf := make([]byte, eventSize*64)

	for {
		n, err := s.file.Read(buf)
		if err != nil {
			// 非ブロッキングなので読むものが無ければここで終わる
			break
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			var e Event
			e.Time.Sec = int64(binary.LittleEndian.Uint64(buf[off : off+8]))
			e.Time.Usec = int64(binary.LittleEndian.Uint64(buf[off+8 : off+16]))
			e.Type = binary.LittleEndian.Uint16(buf[off+16 : off+18])
			e.Code = binary.LittleEndian.Uint16(buf[off+18 : off+20])
			e.Value = int32(binary.LittleEndian.Uint32(buf[off+20 : off+24]))

			if frame := s.applyEvent(e); frame != nil {
				events = s.appendFrame(events, frame)
			}
		}
	}

	return events, nil
}

// applyEvent は1イベントをスロット状態に反映し、フレーム完成時に
// サンプルを返す
func (s *evdevTouchSource) applyEvent(e Event) *motion.Sample {
	switch e.Type {
	case consts.Abs:
		s.applyAbsEvent(e)
	case consts.Syn:
		switch e.Code {
		case consts.SynDropped:
			// 欠落があった場合、次のSYN_REPORTまでの状態は信用できない
			s.log.Debug().Msg("イベントの欠落を検出しました。フレームを読み飛ばします")
			s.dropped = true
		case consts.SynReport:
			if s.dropped {
				s.dropped = false
				return nil
			}
			return s.snapshotFrame(e.Time)
		}
	}
	return nil
}

func (s *evdevTouchSource) applyAbsEvent(e Event) {
	if e.Code == consts.AbsMtSlot {
		if e.Value >= 0 && e.Value < maxSlots {
			s.currentSlot = e.Value
		}
		return
	}
	slot := &s.slots[s.currentSlot]
	switch e.Code {
	case consts.AbsMtTrackingId:
		slot.trackingID = e.Value
		slot.active = e.Value >= 0
		if slot.active && slot.tool == motion.ToolTypeUnknown {
			slot.tool = motion.ToolTypeFinger
		}
	case consts.AbsMtPositionX:
		slot.x = float32(e.Value)
	case consts.AbsMtPositionY:
		slot.y = float32(e.Value)
	case consts.AbsMtPressure:
		slot.pressure = float32(e.Value) / 255
	case consts.AbsMtTouchMajor:
		slot.touchMajor = float32(e.Value)
	case consts.AbsMtToolType:
		switch e.Value {
		case consts.MtToolFinger:
			slot.tool = motion.ToolTypeFinger
		case consts.MtToolPen:
			slot.tool = motion.ToolTypeStylus
		case consts.MtToolPalm:
			slot.tool = motion.ToolTypePalm
		default:
			slot.tool = motion.ToolTypeUnknown
		}
	}
}

// snapshotFrame はアクティブなスロットのポインターを追跡IDの昇順に並べたサンプルを返す
func (s *evdevTouchSource) snapshotFrame(tv syscall.Timeval) *motion.Sample {
	eventTime := time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond

	var pointers []motion.Pointer
	for i := range s.slots {
		slot := &s.slots[i]
		if !slot.active {
			continue
		}
		var coords motion.PointerCoords
		coords.SetAxisValue(motion.AxisX, slot.x)
		coords.SetAxisValue(motion.AxisY, slot.y)
		coords.SetAxisValue(motion.AxisPressure, slot.pressure)
		coords.SetAxisValue(motion.AxisTouchMajor, slot.touchMajor)
		pointers = append(pointers, motion.Pointer{
			Properties: motion.PointerProperties{ID: slot.trackingID, ToolType: slot.tool},
			Coords:     coords,
		})
	}
	sort.SliceStable(pointers, func(a, b int) bool {
		return pointers[a].Properties.ID < pointers[b].Properties.ID
	})

	active := len(pointers)
	if active == 0 && s.lastActive == 0 {
		return nil
	}
	if active > 0 && s.lastActive == 0 {
		s.downTime = eventTime
	}
	s.lastActive = active

	return &motion.Sample{EventTime: eventTime, Pointers: pointers}
}

// appendFrame はフレームをイベント列に足す。直前のイベントと
// ポインター集合が一致する移動フレームは履歴サンプルとして追記する
func (s *evdevTouchSource) appendFrame(events []*motion.MotionEvent, frame *motion.Sample) []*motion.MotionEvent {
	if len(frame.Pointers) == 0 {
		// 全ポインターが離れたフレームはここでは捨てる
		// （アップイベントの合成はこの層の仕事ではない）
		return events
	}

	if len(events) > 0 {
		last := events[len(events)-1]
		if samePointerSet(last, frame) {
			coords := make([]motion.PointerCoords, len(frame.Pointers))
			for i, p := range frame.Pointers {
				coords[i] = p.Coords
			}
			last.AddSample(frame.EventTime, coords, last.ID)
			return events
		}
	}

	props := make([]motion.PointerProperties, len(frame.Pointers))
	coords := make([]motion.PointerCoords, len(frame.Pointers))
	for i, p := range frame.Pointers {
		props[i] = p.Properties
		coords[i] = p.Coords
	}
	event := motion.NewMotionEvent(motion.ActionMove, s.deviceID, props, frame.EventTime, coords)
	event.Source = motion.SourceTouchscreen
	event.DownTime = s.downTime
	return append(events, event)
}

// samePointerSet はイベントとフレームのポインター列が同一かを返す
func samePointerSet(event *motion.MotionEvent, frame *motion.Sample) bool {
	if event.PointerCount() != len(frame.Pointers) {
		return false
	}
	for i := range frame.Pointers {
		if event.PointerProperties(i) != frame.Pointers[i].Properties {
			return false
		}
	}
	return true
}
