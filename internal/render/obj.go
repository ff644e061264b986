package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/annel0/voxelcore/internal/world/mesh"
	"github.com/klauspost/compress/zstd"
)

// WriteOBJ пишет меш в формате Wavefront OBJ, смещая вершины на origin.
// Каждый сабмеш становится отдельной группой.
func WriteOBJ(w io.Writer, origin vec.Vec3, data *mesh.Data) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "o chunk_%d_%d_%d\n", origin.X, origin.Y, origin.Z)
	for _, v := range data.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n",
			v.X()+float32(origin.X), v.Y()+float32(origin.Y), v.Z()+float32(origin.Z))
	}
	for _, uv := range data.UV {
		fmt.Fprintf(bw, "vt %g %g\n", uv.X(), uv.Y())
	}
	for sub, triangles := range data.Triangles {
		fmt.Fprintf(bw, "g submesh_%d\n", sub)
		for i := 0; i+2 < len(triangles); i += 3 {
			// Индексы OBJ начинаются с 1
			a, b, c := triangles[i]+1, triangles[i+1]+1, triangles[i+2]+1
			fmt.Fprintf(bw, "f %d/%d %d/%d %d/%d\n", a, a, b, b, c, c)
		}
	}
	return bw.Flush()
}

// ObjExporter - бэкенд, сохраняющий каждый меш в сжатый zstd файл .obj.zst
type ObjExporter struct {
	dir     string
	encoder *zstd.Encoder
}

// NewObjExporter создаёт экспортер в каталог dir
func NewObjExporter(dir string) (*ObjExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &ObjExporter{dir: dir, encoder: enc}, nil
}

// Path возвращает путь файла меша чанка
func (e *ObjExporter) Path(origin vec.Vec3) string {
	return filepath.Join(e.dir, fmt.Sprintf("chunk_%d_%d_%d.obj.zst", origin.X, origin.Y, origin.Z))
}

// Upload записывает меш; пустые меши удаляют файл
func (e *ObjExporter) Upload(origin vec.Vec3, data *mesh.Data) error {
	if data.IsEmpty() {
		e.Remove(origin)
		return nil
	}

	f, err := os.Create(e.Path(origin))
	if err != nil {
		return err
	}
	if err := e.write(f, origin, data); err != nil {
		f.Close()
		return err
	}
	// Ошибка закрытия означает, что файл на диске неполный
	return f.Close()
}

func (e *ObjExporter) write(w io.Writer, origin vec.Vec3, data *mesh.Data) error {
	e.encoder.Reset(w)
	if err := WriteOBJ(e.encoder, origin, data); err != nil {
		return err
	}
	return e.encoder.Close()
}

// Remove удаляет файл меша
func (e *ObjExporter) Remove(origin vec.Vec3) {
	_ = os.Remove(e.Path(origin))
}

// ReadOBJ читает и распаковывает файл меша
func ReadOBJ(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
