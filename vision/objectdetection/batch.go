package objectdetection

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// BoxColumns is the number of values per detector row: center x, center y, width, height.
const BoxColumns = 4

// BoxTensor is the flattened rows x 4 box output of a detector.
type BoxTensor struct {
	Rows int
	Data []float32
}

// NewBatch pairs each tensor row with its class id. Row i becomes the Detection with Index i.
func NewBatch(boxes BoxTensor, classIDs []int32) ([]Detection, error) {
	if boxes.Rows < 0 {
		return nil, errors.Errorf("negative row count %d", boxes.Rows)
	}
	if len(boxes.Data) != boxes.Rows*BoxColumns {
		return nil, errors.Errorf("box tensor has %d values, expected %d rows x %d columns",
			len(boxes.Data), boxes.Rows, BoxColumns)
	}
	if len(classIDs) != boxes.Rows {
		return nil, errors.Errorf("got %d class ids for %d boxes", len(classIDs), boxes.Rows)
	}
	dets := make([]Detection, 0, boxes.Rows)
	for i := 0; i < boxes.Rows; i++ {
		row := boxes.Data[i*BoxColumns : (i+1)*BoxColumns]
		dets = append(dets, Detection{
			Index:   i,
			ClassID: int(classIDs[i]),
			CenterX: float64(row[0]),
			CenterY: float64(row[1]),
			Width:   float64(row[2]),
			Height:  float64(row[3]),
		})
	}
	return dets, nil
}

// BatchFile is a detector batch saved as JSON, along with the image size the detector saw.
type BatchFile struct {
	ImageWidth  int          `json:"image_width"`
	ImageHeight int          `json:"image_height"`
	Boxes       [][4]float32 `json:"boxes"`
	ClassIDs    []int32      `json:"class_ids"`
}

// Tensor flattens the boxes into a BoxTensor.
func (bf *BatchFile) Tensor() BoxTensor {
	data := make([]float32, 0, len(bf.Boxes)*BoxColumns)
	for _, b := range bf.Boxes {
		data = append(data, b[:]...)
	}
	return BoxTensor{Rows: len(bf.Boxes), Data: data}
}

// Detections builds the batch's detections.
func (bf *BatchFile) Detections() ([]Detection, error) {
	return NewBatch(bf.Tensor(), bf.ClassIDs)
}

// ReadBatchFile reads a BatchFile from disk.
func ReadBatchFile(path string) (*BatchFile, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading batch file")
	}
	var bf BatchFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, errors.Wrapf(err, "error parsing batch file %q", path)
	}
	if bf.ImageWidth <= 0 || bf.ImageHeight <= 0 {
		return nil, errors.Errorf("batch file %q needs a positive image_width and image_height", path)
	}
	return &bf, nil
}
