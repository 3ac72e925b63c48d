package mmap

// Mapping is an owned anonymous memory region.
type Mapping struct {
	data  []byte
	unmap func([]byte) error
}

// MapAnon creates a read-write anonymous mapping of the given size.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return &Mapping{}, nil
	}
	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped region. The slice is valid until Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Close releases the mapping. The region must not be used afterwards.
func (m *Mapping) Close() error {
	if m.data == nil || m.unmap == nil {
		return nil
	}
	err := m.unmap(m.data)
	m.data = nil
	m.unmap = nil
	return err
}
