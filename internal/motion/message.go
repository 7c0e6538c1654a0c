package motion

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// 1メッセージが運べるポインター数の上限
const MaxPointers = 16

// InputMessage はトランスポート上を流れる1サンプル分のメッセージ
// リサンプラーには未来サンプル（補間の上側端点）として渡される
type InputMessage struct {
	EventTime time.Duration
	Pointers  []Pointer
}

// PointerCount はメッセージのポインター数を返す
func (m *InputMessage) PointerCount() int {
	return len(m.Pointers)
}

// sample はメッセージをリサンプラー内部のサンプル表現に変換する
func (m *InputMessage) sample() Sample {
	pointers := make([]Pointer, len(m.Pointers))
	copy(pointers, m.Pointers)
	return Sample{EventTime: m.EventTime, Pointers: pointers}
}

// Pack はメッセージをリトルエンディアンのバイト列に変換する
func (m *InputMessage) Pack() ([]byte, error) {
	if len(m.Pointers) > MaxPointers {
		return nil, fmt.Errorf("ポインター数が上限を超えています: %d", len(m.Pointers))
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int64(m.EventTime)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint8(len(m.Pointers))); err != nil {
		return nil, err
	}
	for _, p := range m.Pointers {
		if err := binary.Write(buf, binary.LittleEndian, p.Properties.ID); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint8(p.Properties.ToolType)); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, p.Coords.bits); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, p.Coords.values); err != nil {
			return nil, err
		}
		resampled := uint8(0)
		if p.Coords.IsResampled {
			resampled = 1
		}
		if err := binary.Write(buf, binary.LittleEndian, resampled); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Unpack はバイト列からメッセージを復元する
func (m *InputMessage) Unpack(data []byte) error {
	buf := bytes.NewReader(data)
	var eventTime int64
	if err := binary.Read(buf, binary.LittleEndian, &eventTime); err != nil {
		return fmt.Errorf("イベント時刻の読み取りに失敗しました: %w", err)
	}
	var count uint8
	if err := binary.Read(buf, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("ポインター数の読み取りに失敗しました: %w", err)
	}
	if int(count) > MaxPointers {
		return fmt.Errorf("ポインター数が上限を超えています: %d", count)
	}
	m.EventTime = time.Duration(eventTime)
	m.Pointers = make([]Pointer, count)
	for i := range m.Pointers {
		p := &m.Pointers[i]
		if err := binary.Read(buf, binary.LittleEndian, &p.Properties.ID); err != nil {
			return fmt.Errorf("ポインター属性の読み取りに失敗しました: %w", err)
		}
		var tool uint8
		if err := binary.Read(buf, binary.LittleEndian, &tool); err != nil {
			return fmt.Errorf("ツール種別の読み取りに失敗しました: %w", err)
		}
		p.Properties.ToolType = ToolType(tool)
		if err := binary.Read(buf, binary.LittleEndian, &p.Coords.bits); err != nil {
			return fmt.Errorf("座標ビットマップの読み取りに失敗しました: %w", err)
		}
		if err := binary.Read(buf, binary.LittleEndian, &p.Coords.values); err != nil {
			return fmt.Errorf("座標値の読み取りに失敗しました: %w", err)
		}
		var resampled uint8
		if err := binary.Read(buf, binary.LittleEndian, &resampled); err != nil {
			return fmt.Errorf("リサンプルフラグの読み取りに失敗しました: %w", err)
		}
		p.Coords.IsResampled = resampled != 0
	}
	return nil
}
