// 包 archive：上传压缩包的解包、数据文件定位与结果重新打包
// 背景：每个请求独占一个临时工作目录，调用方 defer Close 保证在成功、校验失败与 panic 时均被删除。
// 约束：仅使用文件名后缀判断类型，不做魔数嗅探；解包后只扫描顶层目录。
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"parcel-api/internal/apperr"
)

const (
	DetailInvalidKind    = "Only .zip files allowed"
	DetailMissingDataset = "No .shp file found"
	DetailCorrupt        = "Invalid zip archive"

	ArchiveExt = ".zip"
	DatasetExt = ".shp"
)

// SidecarExts：打包时收集的同名文件扩展名（按此顺序写入）
var SidecarExts = []string{".shp", ".shx", ".dbf", ".prj"}

var errTooLarge = errors.New("archive: uncompressed size limit exceeded")

// CheckFilename：上传文件名必须以 .zip 结尾（不区分大小写）
func CheckFilename(name string) error {
	if !strings.HasSuffix(strings.ToLower(name), ArchiveExt) {
		return apperr.New(apperr.InvalidInputKind, DetailInvalidKind)
	}
	return nil
}

// Workspace：请求级临时目录
type Workspace struct {
	Dir string
}

// NewWorkspace：在 root 下创建临时目录；root 为空时使用系统临时目录
func NewWorkspace(root string) (*Workspace, error) {
	dir, err := os.MkdirTemp(root, "parcel-*")
	if err != nil {
		return nil, fmt.Errorf("archive: workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Close：删除整个工作目录；可重复调用
func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	err := os.RemoveAll(w.Dir)
	w.Dir = ""
	return err
}

// Path：工作目录内的路径
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}

// Unpacker：解包器
// MaxBytes 为解压后总字节上限，<=0 表示不限制
type Unpacker struct {
	MaxBytes int64
	Logger   *slog.Logger
}

// Unpack：保存上传内容为 input.zip 并解包到 <ws>/shapefile，返回解包目录
func (u *Unpacker) Unpack(ws *Workspace, src io.Reader) (string, error) {
	zipPath := ws.Path("input.zip")
	size, err := saveFile(zipPath, src)
	if err != nil {
		return "", fmt.Errorf("archive: save upload: %w", err)
	}
	dest := ws.Path("shapefile")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	f, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("archive: reopen upload: %w", err)
	}
	defer f.Close()
	zr, err := zip.NewReader(f, size)
	if err != nil {
		return "", apperr.Wrap(apperr.CorruptArchive, DetailCorrupt, err)
	}
	if err := u.extract(zr, dest); err != nil {
		return "", apperr.Wrap(apperr.CorruptArchive, DetailCorrupt, err)
	}
	u.logger().Debug("archive_unpack_ok", "entries", len(zr.File), "bytes", size)
	return dest, nil
}

func (u *Unpacker) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

func (u *Unpacker) extract(zr *zip.Reader, dest string) error {
	var total int64
	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		n, err := u.extractFile(zf, target, total)
		if err != nil {
			return fmt.Errorf("%s: %w", zf.Name, err)
		}
		total += n
	}
	return nil
}

func (u *Unpacker) extractFile(zf *zip.File, target string, used int64) (int64, error) {
	rc, err := zf.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	var r io.Reader = rc
	if u.MaxBytes > 0 {
		// 多读 1 字节用于判断超限
		r = io.LimitReader(rc, u.MaxBytes-used+1)
	}
	n, err := saveFile(target, r)
	if err != nil {
		return n, err
	}
	if u.MaxBytes > 0 && used+n > u.MaxBytes {
		return n, errTooLarge
	}
	return n, nil
}

// safeJoin：拒绝逃逸出 dest 的条目（zip-slip）
func safeJoin(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("archive: illegal entry %q", name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive: illegal entry %q", name)
	}
	return target, nil
}

func saveFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// LocateDatasetFile：在目录顶层查找小写扩展名的 .shp
// 背景：go-shp 按小写扩展名打开同名 .shx/.dbf，大写的 .SHP 视为缺失
// 约束：多个候选时取文件名字典序第一个，保证同一输入结果稳定
func LocateDatasetFile(dir string, l *slog.Logger) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("archive: list %s: %w", filepath.Base(dir), err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), DatasetExt) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", apperr.New(apperr.MissingDatasetFile, DetailMissingDataset)
	}
	sort.Strings(names)
	if len(names) > 1 && l != nil {
		l.Warn("archive_multiple_datasets", "candidates", names, "picked", names[0])
	}
	return filepath.Join(dir, names[0]), nil
}

// Pack：将 dir 下 base 的各同名文件写入 zip；不存在的扩展名跳过，条目名不含目录
func Pack(dir, base string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	written := 0
	for _, ext := range SidecarExts {
		name := base + ext
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apperr.Wrap(apperr.CorruptArchive, DetailCorrupt, err)
		}
		if err := addFile(zw, path, name, info); err != nil {
			return nil, apperr.Wrap(apperr.CorruptArchive, DetailCorrupt, err)
		}
		written++
	}
	if err := zw.Close(); err != nil {
		return nil, apperr.Wrap(apperr.CorruptArchive, DetailCorrupt, err)
	}
	if written == 0 {
		return nil, apperr.New(apperr.CorruptArchive, DetailCorrupt)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, path, name string, info os.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
