package labelfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

func TestExportYAML(t *testing.T) {
	lf, err := FromDocument(sampleDocument(t), "photo.png", nil)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	var buf bytes.Buffer
	if err := ExportYAML(&buf, lf); err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}

	var sum Summary
	if err := yaml.Unmarshal(buf.Bytes(), &sum); err != nil {
		t.Fatalf("yaml.Unmarshal: %v\n%s", err, buf.String())
	}
	if sum.Image.Path != "photo.png" || len(sum.Shapes) != 7 {
		t.Fatalf("summary = %+v", sum)
	}
	car := sum.Shapes[1]
	if car.Label != "car" || car.BBox != [4]float64{40, 40, 60, 60} || car.Area != 400 || !car.Locked {
		t.Errorf("car = %+v", car)
	}
	if !sum.Shapes[2].Hidden {
		t.Error("hidden circle not marked hidden")
	}
	if sum.Counts["roof"] != 1 {
		t.Errorf("counts = %v", sum.Counts)
	}
}

func TestExportParquet(t *testing.T) {
	lf, err := FromDocument(sampleDocument(t), "photo.png", nil)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	var buf bytes.Buffer
	if err := ExportParquet(&buf, lf, lf); err != nil {
		t.Fatalf("ExportParquet: %v", err)
	}

	pf, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if pf.NumRows() != 14 {
		t.Fatalf("NumRows = %d, want 14", pf.NumRows())
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()
	rows := make([]Row, 14)
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if n != 14 {
		t.Fatalf("read %d rows", n)
	}
	roof := rows[0]
	if roof.Label != "roof" || roof.GroupID == nil || *roof.GroupID != 3 || roof.NumPoints != 3 {
		t.Errorf("roof row = %+v", roof)
	}
	if rows[1].GroupID != nil || rows[1].MaxX != 60 {
		t.Errorf("car row = %+v", rows[1])
	}
}

func TestShapeStats(t *testing.T) {
	st := ShapeStats(sampleDocument(t).Shapes())
	if st.Shapes != 7 || st.ByType["rectangle"] != 1 || st.Groups != 1 {
		t.Errorf("stats = %+v", st)
	}
}
