package remit

import (
	"context"

	"github.com/caresuite/bix-app/bix/models"
)

type FakeSaver struct {
	Remittances []models.Remittance
	Statuses    map[uint]string
}

func (m *FakeSaver) SaveRemittance(ctx context.Context, r *models.Remittance, metadata RemitFileMetadata) (uint, error) {
	m.Remittances = append(m.Remittances, *r)
	return uint(len(m.Remittances)), nil
}

func (m *FakeSaver) UpdateImportStatus(ctx context.Context, fileID uint, status string) error {
	if m.Statuses == nil {
		m.Statuses = make(map[uint]string)
	}
	m.Statuses[fileID] = status
	return nil
}
