package main

import (
	"windscapes-barcode/internal/config"
	"windscapes-barcode/internal/device"
	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/logger"
	"windscapes-barcode/internal/repository"
	"windscapes-barcode/internal/services"
)

// app holds what the subcommands share. Components are built on first use
// so that commands like ports never touch the catalog.
type app struct {
	cfg *config.Config
	log *logger.StructuredLogger

	db        *repository.Database
	catalog   services.Catalog
	transport *device.Transport
	printer   *services.LabelPrintService
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.log != nil {
		a.log.Close()
	}
}

func (a *app) Catalog() (services.Catalog, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}

	switch a.cfg.Catalog.Source {
	case config.CatalogDatabase:
		db, err := repository.NewDatabase(&a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.catalog = repository.NewProductRepository(db)
		a.log.LogSystemEvent("Catalog opened", map[string]interface{}{"source": "database", "host": a.cfg.Database.Host})
	default:
		if a.cfg.Catalog.File == "" {
			a.catalog = repository.NewMemoryCatalog()
			break
		}
		c, err := repository.LoadMemoryCatalog(a.cfg.Catalog.File)
		if err != nil {
			return nil, err
		}
		a.catalog = c
		a.log.LogSystemEvent("Catalog opened", map[string]interface{}{"source": "memory", "file": a.cfg.Catalog.File})
	}
	return a.catalog, nil
}

// Transport returns nil when the printer driver is "none".
func (a *app) Transport() (*device.Transport, error) {
	if a.transport != nil {
		return a.transport, nil
	}
	driver, err := device.NewDriver(a.cfg.DeviceSettings())
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, nil
	}
	a.transport = device.NewTransport(driver, device.Options{RequireClaim: a.cfg.Device.RequireClaim}, a.log)
	a.transport.OnStateChange(func(from, to device.State) {
		a.log.LogDeviceEvent("printer state", driver.Name(), map[string]interface{}{
			"from": from.String(),
			"to":   to.String(),
		})
	})
	return a.transport, nil
}

func (a *app) Printer() (*services.LabelPrintService, error) {
	if a.printer != nil {
		return a.printer, nil
	}

	transport, err := a.Transport()
	if err != nil {
		return nil, err
	}

	labelCfg := a.cfg.LabelSettings()
	var fallback *services.FallbackPrinter
	if a.cfg.Fallback.Enabled {
		spooler := services.NewCommandSpooler(a.cfg.Fallback.Spoolers, a.cfg.Fallback.Printer)
		fallback = services.NewFallbackPrinter(services.NewDocumentBuilder(labelCfg), spooler, a.cfg.Fallback.OutputDir, a.log)
	}

	opts := services.PrintOptions{
		PerRow:      a.cfg.Label.PerRow,
		PerSheet:    a.cfg.Label.PerSheet,
		SendTimeout: a.cfg.Device.Timeout(),
	}
	// A nil *Transport must not become a non-nil Sender.
	var sender services.Sender
	if transport != nil {
		sender = transport
	}
	a.printer = services.NewLabelPrintService(labelCfg, opts, sender, fallback, a.log)
	return a.printer, nil
}

func (a *app) BarcodeService() *services.BarcodeService {
	return services.NewBarcodeService(ean.DefaultOptions())
}
