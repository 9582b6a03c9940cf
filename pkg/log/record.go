package log

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"minirel/pkg/primitives"
)

// LSN is a log sequence number, monotonically increasing per record.
type LSN uint64

// RecordType tags one write-ahead log record.
type RecordType byte

const (
	RecordBegin RecordType = iota + 1
	RecordWrite
	RecordCommit
	RecordAbort
)

func (rt RecordType) String() string {
	switch rt {
	case RecordBegin:
		return "BEGIN"
	case RecordWrite:
		return "WRITE"
	case RecordCommit:
		return "COMMIT"
	case RecordAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// Record is one write-ahead log entry. PID and Data are populated only
// for RecordWrite, where Data is the page's after-image.
type Record struct {
	LSN  LSN
	Type RecordType
	TID  int64
	PID  primitives.PageID
	Data []byte
}

// serialize encodes the record as a length-prefixed frame: a 4-byte
// body length, then the body (lsn, type, tid, and for writes the page
// identity and after-image).
func (r *Record) serialize() ([]byte, error) {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.BigEndian, uint64(r.LSN)); err != nil {
		return nil, err
	}
	if err := body.WriteByte(byte(r.Type)); err != nil {
		return nil, err
	}
	if err := binary.Write(&body, binary.BigEndian, r.TID); err != nil {
		return nil, err
	}
	if r.Type == RecordWrite {
		if err := binary.Write(&body, binary.BigEndian, uint64(r.PID.Table)); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.BigEndian, int64(r.PID.Page)); err != nil {
			return nil, err
		}
		if err := binary.Write(&body, binary.BigEndian, uint32(len(r.Data))); err != nil {
			return nil, err
		}
		body.Write(r.Data)
	}

	var frame bytes.Buffer
	frame.Grow(4 + body.Len())
	if err := binary.Write(&frame, binary.BigEndian, uint32(body.Len())); err != nil {
		return nil, err
	}
	frame.Write(body.Bytes())
	return frame.Bytes(), nil
}

// readRecord decodes one frame from r. It returns io.EOF cleanly at
// the end of the log.
func readRecord(r io.Reader) (*Record, error) {
	var bodyLen uint32
	if err := binary.Read(r, binary.BigEndian, &bodyLen); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read record length")
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "read record body")
	}
	br := bytes.NewReader(body)

	rec := &Record{}
	var lsn uint64
	if err := binary.Read(br, binary.BigEndian, &lsn); err != nil {
		return nil, errors.Wrap(err, "read lsn")
	}
	rec.LSN = LSN(lsn)

	typeByte, err := br.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read record type")
	}
	rec.Type = RecordType(typeByte)
	if rec.Type < RecordBegin || rec.Type > RecordAbort {
		return nil, errors.Errorf("unknown record type %d", typeByte)
	}

	if err := binary.Read(br, binary.BigEndian, &rec.TID); err != nil {
		return nil, errors.Wrap(err, "read tid")
	}

	if rec.Type == RecordWrite {
		var table uint64
		var pageNo int64
		var dataLen uint32
		if err := binary.Read(br, binary.BigEndian, &table); err != nil {
			return nil, errors.Wrap(err, "read table id")
		}
		if err := binary.Read(br, binary.BigEndian, &pageNo); err != nil {
			return nil, errors.Wrap(err, "read page number")
		}
		if err := binary.Read(br, binary.BigEndian, &dataLen); err != nil {
			return nil, errors.Wrap(err, "read data length")
		}
		rec.PID = primitives.NewPageID(primitives.TableID(table), primitives.PageNumber(pageNo))
		rec.Data = make([]byte, dataLen)
		if _, err := io.ReadFull(br, rec.Data); err != nil {
			return nil, errors.Wrap(err, "read after image")
		}
	}
	return rec, nil
}
