package fotos

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxFileSize limita el tamaño de una foto a 5MB.
const MaxFileSize = 5 << 20

// URLPrefix es el path público bajo el que se sirven las fotos.
const URLPrefix = "/uploads/"

var (
	ErrorInvalidType = errors.New("invalid image type")
	ErrorTooLarge    = errors.New("file too large")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Storage guarda fotos de tombamentos en disco y las referencia por URL pública.
type Storage struct {
	dir string
}

// New crea el directorio de uploads si no existe.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Storage{dir: dir}, nil
}

// Dir devuelve el directorio base, para montar el file server estático.
func (storage *Storage) Dir() string {
	return storage.dir
}

// Save valida y persiste el archivo subido; devuelve la URL pública (/uploads/...).
// Se validan extensión y content-type contra la whitelist de imágenes.
func (storage *Storage) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxFileSize {
		return "", ErrorTooLarge
	}

	extension := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[extension] {
		return "", ErrorInvalidType
	}
	if !allowedContentTypes[header.Header.Get("Content-Type")] {
		return "", ErrorInvalidType
	}

	// Nombre único para que uploads concurrentes no pisen archivos.
	filename := fmt.Sprintf("tombamento-%d-%d%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), extension)

	destination, err := os.Create(filepath.Join(storage.dir, filename))
	if err != nil {
		return "", err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, io.LimitReader(file, MaxFileSize)); err != nil {
		_ = os.Remove(destination.Name())
		return "", err
	}

	return URLPrefix + filename, nil
}

// Delete elimina el archivo referenciado por su URL pública.
// No es error que el archivo ya no exista: el registro manda, el archivo acompaña.
func (storage *Storage) Delete(fotoURL string) error {
	filename := strings.TrimPrefix(fotoURL, URLPrefix)
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		// URL que no apunta a un archivo del directorio: nada seguro que borrar.
		return nil
	}

	err := os.Remove(filepath.Join(storage.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
