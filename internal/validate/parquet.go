package validate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	parquet "github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/mat"

	"github.com/linuxmatters/f120/internal/processor"
)

// metadata keys carrying the dense geometry of a sparse file
const (
	metaElectrodes = "f120.electrodes"
	metaSamples    = "f120.samples"
	metaFs         = "f120.fs"
)

const readBatch = 1024

// PhaseRow is one non-zero phase sample of an electrodogram
type PhaseRow struct {
	Electrode int32   `parquet:"electrode"`
	Sample    int64   `parquet:"sample"`
	TimeUs    float64 `parquet:"time_us"`
	Amplitude float64 `parquet:"amplitude_ua"`
}

// WriteParquet stores the non-zero samples of eg with Snappy compression
func WriteParquet(w io.Writer, eg processor.Electrodogram) error {
	if eg.Data == nil {
		return fmt.Errorf("%w: empty", ErrShape)
	}
	rows, cols := eg.Data.Dims()
	pw := parquet.NewGenericWriter[PhaseRow](w,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(metaElectrodes, strconv.Itoa(rows)),
		parquet.KeyValueMetadata(metaSamples, strconv.Itoa(cols)),
		parquet.KeyValueMetadata(metaFs, strconv.FormatFloat(eg.Fs, 'g', -1, 64)),
	)

	usPerSample := 1e6 / eg.Fs
	batch := make([]PhaseRow, 0, readBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	// time order, electrode order within a sample
	for n := 0; n < cols; n++ {
		for e := 0; e < rows; e++ {
			v := eg.Data.At(e, n)
			if v == 0 {
				continue
			}
			batch = append(batch, PhaseRow{
				Electrode: int32(e),
				Sample:    int64(n),
				TimeUs:    float64(n) * usPerSample,
				Amplitude: v,
			})
			if len(batch) == cap(batch) {
				if err := flush(); err != nil {
					return fmt.Errorf("failed to write rows: %w", err)
				}
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finalise parquet: %w", err)
	}
	return nil
}

// SaveParquet writes eg to path
func SaveParquet(path string, eg processor.Electrodogram) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteParquet(f, eg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadParquet rebuilds the dense electrodogram from a sparse file
func ReadParquet(r io.ReaderAt, size int64) (processor.Electrodogram, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return processor.Electrodogram{}, fmt.Errorf("failed to open parquet: %w", err)
	}

	lookupInt := func(key string) (int, error) {
		v, ok := pf.Lookup(key)
		if !ok {
			return 0, fmt.Errorf("%w: missing %s metadata", ErrShape, key)
		}
		return strconv.Atoi(v)
	}
	rows, err := lookupInt(metaElectrodes)
	if err != nil {
		return processor.Electrodogram{}, err
	}
	cols, err := lookupInt(metaSamples)
	if err != nil {
		return processor.Electrodogram{}, err
	}
	fsText, ok := pf.Lookup(metaFs)
	if !ok {
		return processor.Electrodogram{}, fmt.Errorf("%w: missing %s metadata", ErrShape, metaFs)
	}
	fs, err := strconv.ParseFloat(fsText, 64)
	if err != nil {
		return processor.Electrodogram{}, fmt.Errorf("bad %s metadata: %w", metaFs, err)
	}
	if rows < 1 || cols < 1 {
		return processor.Electrodogram{}, fmt.Errorf("%w: %dx%d", ErrShape, rows, cols)
	}

	data := mat.NewDense(rows, cols, nil)
	gr := parquet.NewGenericReader[PhaseRow](r)
	defer gr.Close()

	batch := make([]PhaseRow, readBatch)
	for {
		n, err := gr.Read(batch)
		for _, row := range batch[:n] {
			if row.Electrode < 0 || int(row.Electrode) >= rows || row.Sample < 0 || row.Sample >= int64(cols) {
				return processor.Electrodogram{}, fmt.Errorf("%w: row at electrode %d sample %d", ErrShape, row.Electrode, row.Sample)
			}
			data.Set(int(row.Electrode), int(row.Sample), row.Amplitude)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return processor.Electrodogram{}, fmt.Errorf("failed to read rows: %w", err)
		}
	}
	return processor.Electrodogram{Data: data, Fs: fs}, nil
}

// LoadParquet reads an electrodogram saved by SaveParquet
func LoadParquet(path string) (processor.Electrodogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return processor.Electrodogram{}, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return processor.Electrodogram{}, err
	}
	return ReadParquet(f, info.Size())
}
