package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"minirel/pkg/log"
	"minirel/pkg/primitives"
	"minirel/pkg/storage/heap"
	"minirel/pkg/tuple"
	"minirel/pkg/types"
)

// heapdump inspects on-disk heap files and write-ahead logs without
// going through a buffer pool, for debugging storage issues offline.

var cli struct {
	Pages  pagesCmd  `cmd:"" help:"Summarize slot occupancy per page."`
	Tuples tuplesCmd `cmd:"" help:"Print the live tuples of a heap file."`
	Wal    walCmd    `cmd:"" help:"Print the records of a write-ahead log."`
}

type pagesCmd struct {
	File   string `arg:"" help:"Path to the heap file."`
	Schema string `required:"" help:"Comma-separated field types, e.g. int,string."`
}

type tuplesCmd struct {
	File   string `arg:"" help:"Path to the heap file."`
	Schema string `required:"" help:"Comma-separated field types, e.g. int,string."`
	Page   int    `default:"-1" help:"Restrict output to one page number."`
}

type walCmd struct {
	File string `arg:"" help:"Path to the log file."`
}

func parseSchema(schema string) (*tuple.TupleDescription, error) {
	parts := strings.Split(schema, ",")
	fieldTypes := make([]types.Type, 0, len(parts))
	for _, part := range parts {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "int":
			fieldTypes = append(fieldTypes, types.IntType)
		case "float":
			fieldTypes = append(fieldTypes, types.FloatType)
		case "bool":
			fieldTypes = append(fieldTypes, types.BoolType)
		case "string":
			fieldTypes = append(fieldTypes, types.StringType)
		default:
			return nil, errors.Errorf("unknown field type %q", part)
		}
	}
	return tuple.NewTupleDesc(fieldTypes, nil)
}

func openFile(path, schema string) (*heap.HeapFile, error) {
	td, err := parseSchema(schema)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "heap file")
	}
	return heap.NewHeapFile(primitives.Filepath(path), td)
}

func (c *pagesCmd) Run() error {
	hf, err := openFile(c.File, c.Schema)
	if err != nil {
		return err
	}
	defer hf.Close()

	numPages, err := hf.NumPages()
	if err != nil {
		return err
	}
	slots := heap.SlotsPerPage(hf.GetTupleDesc().Size())
	fmt.Printf("%s: %d pages, %d slots/page, tuple width %d bytes\n",
		c.File, numPages, slots, hf.GetTupleDesc().Size())

	for pageNo := primitives.PageNumber(0); pageNo < numPages; pageNo++ {
		p, err := hf.ReadPage(primitives.NewPageID(hf.GetID(), pageNo))
		if err != nil {
			return errors.Wrapf(err, "page %d", pageNo)
		}
		hp := p.(*heap.HeapPage)
		used := hp.GetNumSlots() - hp.GetNumEmptySlots()
		fmt.Printf("  page %4d: %d/%d slots used\n", pageNo, used, hp.GetNumSlots())
	}
	return nil
}

func (c *tuplesCmd) Run() error {
	hf, err := openFile(c.File, c.Schema)
	if err != nil {
		return err
	}
	defer hf.Close()

	numPages, err := hf.NumPages()
	if err != nil {
		return err
	}

	for pageNo := primitives.PageNumber(0); pageNo < numPages; pageNo++ {
		if c.Page >= 0 && pageNo != primitives.PageNumber(c.Page) {
			continue
		}
		p, err := hf.ReadPage(primitives.NewPageID(hf.GetID(), pageNo))
		if err != nil {
			return errors.Wrapf(err, "page %d", pageNo)
		}
		hp := p.(*heap.HeapPage)
		for i := 0; i < hp.GetNumSlots(); i++ {
			slot := primitives.SlotID(i)
			if !hp.IsSlotUsed(slot) {
				continue
			}
			t, err := hp.GetTuple(slot)
			if err != nil {
				return err
			}
			fmt.Printf("page %d slot %d: %s\n", pageNo, i, t)
		}
	}
	return nil
}

func (c *walCmd) Run() error {
	r, err := log.NewReader(primitives.Filepath(c.File))
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch rec.Type {
		case log.RecordWrite:
			fmt.Printf("lsn %6d %-6s tid %d %v (%d bytes)\n",
				rec.LSN, rec.Type, rec.TID, rec.PID, len(rec.Data))
		default:
			fmt.Printf("lsn %6d %-6s tid %d\n", rec.LSN, rec.Type, rec.TID)
		}
	}
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("heapdump"),
		kong.Description("Inspect heap files and write-ahead logs."),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
