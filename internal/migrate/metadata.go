package migrate

import (
	"fmt"
	"io"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/document"
	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/version"
)

// Header is what ReadHeader learns from the start of an asset document.
type Header struct {
	// Tag is the root tag, such as "!Material".
	Tag string
	// ID is the scalar Id of the asset, if any.
	ID string
	// Version is the serialized version for the requested dependency, or
	// version.Zero when none is recorded.
	Version version.Version
	// Legacy is set when SerializedVersion was a bare integer.
	Legacy bool
}

// ReadHeader reads the root tag and the serialized version of dependency from
// r. Id and SerializedVersion are always written first, so reading stops at
// the first other top-level key and the rest of the stream is never parsed.
func ReadHeader(r io.Reader, dependency string) (Header, error) {
	events := document.NewEventReader(r)

	if _, err := events.Expect(document.StreamStart); err != nil {
		return Header{}, err
	}
	if _, err := events.Expect(document.DocumentStart); err != nil {
		return Header{}, err
	}
	root, err := events.Expect(document.MappingStart)
	if err != nil {
		return Header{}, err
	}

	h := Header{Tag: root.Tag}

	for {
		if _, end, err := events.Allow(document.MappingEnd); err != nil {
			return Header{}, err
		} else if end {
			return h, nil
		}

		key, err := events.Expect(document.Scalar)
		if err != nil {
			return Header{}, err
		}

		switch key.Value {
		case asset.KeyID:
			next, err := events.Peek()
			if err != nil {
				return Header{}, err
			}
			if next.Kind == document.Scalar {
				h.ID = next.Value
			}
			if err := events.Skip(); err != nil {
				return Header{}, err
			}
		case asset.KeySerializedVersion:
			if err := readSerializedVersion(events, dependency, &h); err != nil {
				return Header{}, err
			}
			return h, nil
		default:
			return h, nil
		}
	}
}

func readSerializedVersion(events *document.EventReader, dependency string, h *Header) error {
	legacy, ok, err := events.Allow(document.Scalar)
	if err != nil {
		return err
	}
	if ok {
		if legacy.Null {
			return nil
		}
		v, err := asset.ParseLegacy(legacy.Value)
		if err != nil {
			return models.ErrParseAt(legacy.Line, "%v", err)
		}
		h.Version = v
		h.Legacy = true
		return nil
	}

	if _, err := events.Expect(document.MappingStart); err != nil {
		return err
	}

	for {
		if _, end, err := events.Allow(document.MappingEnd); err != nil {
			return err
		} else if end {
			return nil
		}

		key, err := events.Expect(document.Scalar)
		if err != nil {
			return err
		}
		if key.Value != dependency {
			if err := events.Skip(); err != nil {
				return err
			}
			continue
		}

		value, err := events.Expect(document.Scalar)
		if err != nil {
			return err
		}
		v, err := version.Parse(value.Value)
		if err != nil {
			return models.ErrParseAt(value.Line, "%s[%s]: %v", asset.KeySerializedVersion, dependency, err)
		}
		h.Version = v
	}
}

// readFileHeader reads the header of file and, when SerializedVersion is
// still a bare integer, rewrites the file into the mapping form first.
func readFileHeader(file *asset.File, dependency string) (Header, error) {
	r, err := file.Open()
	if err != nil {
		return Header{}, err
	}
	h, err := ReadHeader(r, dependency)
	r.Close()
	if err != nil {
		return Header{}, fmt.Errorf("reading header of %s: %w", file.FilePath, err)
	}

	if h.Legacy {
		if err := normalizeLegacy(file, dependency, h.Version); err != nil {
			return Header{}, err
		}
	}

	return h, nil
}

// normalizeLegacy replaces the integer SerializedVersion of the root, and of
// the embedded base asset, with {dependency: v}. Only one dependency is known
// at this point, so the base copy receives the root's version.
func normalizeLegacy(file *asset.File, dependency string, v version.Version) error {
	editor, err := file.Edit()
	if err != nil {
		return err
	}

	root := editor.Root()
	replaceSerializedVersion(root, dependency, v)
	if base := asset.BaseAsset(root); base != nil {
		replaceSerializedVersion(base, dependency, v)
	}

	return editor.Commit()
}

func replaceSerializedVersion(node *document.Node, dependency string, v version.Version) {
	node.Remove(asset.KeySerializedVersion)
	asset.SetSerializedVersion(node, dependency, v)
}
