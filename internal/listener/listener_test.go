package listener

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fleetreport/internal"
	"fleetreport/internal/config"
	"fleetreport/internal/connectors"
	"fleetreport/internal/pipeline"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (s stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return s.messages, nil
}

func reportMail(subject, filename, content string) []byte {
	var b strings.Builder
	b.WriteString("From: gps@flota.example\r\n")
	b.WriteString("To: ops@flota.example\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"BOUNDARY\"\r\n\r\n")
	b.WriteString("--BOUNDARY\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("Adjunto el reporte diario.\r\n")
	b.WriteString("--BOUNDARY\r\n")
	b.WriteString("Content-Type: text/csv; charset=utf-8; name=\"" + filename + "\"\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"" + filename + "\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(content)) + "\r\n")
	b.WriteString("--BOUNDARY--\r\n")
	return []byte(b.String())
}

func newTestListener(t *testing.T, msgs ...internal.FetchedMailMessage) (*Service, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.Config{
		InboxDir:             filepath.Join(tmp, "inbox"),
		OutputDir:            filepath.Join(tmp, "out"),
		MailListenerProvider: "stub",
		MailListenerLabel:    "Reportes",
		MailListenerFetchMax: 10,
		MailListenerReport:   "gps",
		MailListenerWorkers:  2,
	}
	reports := pipeline.NewService(nil, pipeline.Options{Location: time.UTC}, nil)
	connect := func(context.Context, string) (connectors.MailConnector, error) {
		return stubConnector{messages: msgs}, nil
	}
	svc, err := NewServiceWithConnector(cfg, reports, connect, nil)
	require.NoError(t, err)
	return svc, cfg
}

const gpsCSV = "Vehículo,Estado,Días desde que se recibió la comunicación\nV1,Online,2 Days\nV2,Sin conexión,11 Minutes\n"

func TestRunCycleExportsAttachments(t *testing.T) {
	msg := internal.FetchedMailMessage{Provider: "stub", MessageID: "<1@x>", Raw: reportMail("Reporte diario", "flota.csv", gpsCSV)}
	svc, _ := newTestListener(t, msg)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Exported, 1)
	assert.True(t, strings.HasSuffix(res.Exported[0], "_flota_gps.xlsx"))

	f, err := excelize.OpenFile(res.Exported[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(pipeline.SheetDisconnected)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "V1", rows[1][0])
	assert.Equal(t, "V2", rows[2][0])

	again, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Stored)
	assert.Equal(t, 0, again.Processed)
}

func TestRunCycleKeepsFailedMailPending(t *testing.T) {
	bad := internal.FetchedMailMessage{Provider: "stub", MessageID: "<2@x>", Raw: reportMail("Otro", "colores.csv", "Modelo,Color\nX,Rojo\n")}
	svc, cfg := newTestListener(t, bad)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Processed)

	pending, err := connectors.NewMailStore(cfg.InboxDir).Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRunCycleMailWithoutAttachments(t *testing.T) {
	plain := internal.FetchedMailMessage{Provider: "stub", MessageID: "<3@x>", Raw: []byte("Subject: hola\r\n\r\nsin adjuntos\r\n")}
	svc, cfg := newTestListener(t, plain)

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Empty(t, res.Exported)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "listener"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewServiceRejectsUnknownReport(t *testing.T) {
	_, err := NewService(config.Config{MailListenerReport: "fuel"}, pipeline.NewService(nil, pipeline.Options{}, nil), nil)
	assert.Error(t, err)
}
