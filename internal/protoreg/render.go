package protoreg

import (
	"io"
	"os"
	"path"

	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Render writes every service file of r below outDir.
func Render(r *Registry, outDir string) error {
	for _, fd := range r.GetAllServiceFiles() {
		if err := renderFile(fd, path.Join(outDir, fd.Path())); err != nil {
			return err
		}
	}
	return nil
}

// RenderTo prints every service file of r to w, one after another.
func RenderTo(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	for _, fd := range r.GetAllServiceFiles() {
		if _, err := io.WriteString(w, "// "+fd.Path()+"\n"); err != nil {
			return err
		}
		if err := pp.PrintProtoFile(fd, w); err != nil {
			return err
		}
	}
	return nil
}

func renderFile(fd protoreflect.FileDescriptor, fp string) error {
	if err := os.MkdirAll(path.Dir(fp), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(fd, f)
}
