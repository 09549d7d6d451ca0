package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/lib/pq"
)

// classify is the single place driver errors become domain kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewStoreError(op, kindOf(err), err)
}

func kindOf(err error) domain.ErrorKind {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.KindNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return domain.KindDuplicateKey
		case "42501", "28000", "28P01":
			return domain.KindPermissionDenied
		case "53300", "57P01", "57P02", "57P03", "40001", "40P01":
			return domain.KindNetworkTransient
		}
		if pqErr.Code.Class() == "08" {
			return domain.KindNetworkTransient
		}
		return domain.KindUnknown
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.KindNetworkTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.KindNetworkTransient
	}
	return domain.KindUnknown
}
