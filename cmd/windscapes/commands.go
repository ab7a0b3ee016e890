package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"windscapes-barcode/internal/device"
	"windscapes-barcode/internal/ean"
	"windscapes-barcode/internal/handlers"
	"windscapes-barcode/internal/label"
	"windscapes-barcode/internal/middleware"
	"windscapes-barcode/internal/models"
	"windscapes-barcode/internal/monitoring"
	"windscapes-barcode/internal/routes"
	"windscapes-barcode/internal/scan"
	"windscapes-barcode/internal/services"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Server.Mode != "" {
				gin.SetMode(a.cfg.Server.Mode)
			}
			if addr == "" {
				addr = a.cfg.Server.Addr()
			}

			catalog, err := a.Catalog()
			if err != nil {
				return err
			}
			printer, err := a.Printer()
			if err != nil {
				return err
			}
			transport, err := a.Transport()
			if err != nil {
				return err
			}
			var state handlers.PrinterState
			if transport != nil {
				state = transport
			}

			monitor := middleware.NewPerformanceMonitor(2*time.Second, a.log)
			tracker := monitoring.NewErrorTracker(200, 24*time.Hour)
			products := services.NewProductService(catalog, printer, a.log)
			router := routes.NewRouter(routes.Handlers{
				Labels:   handlers.NewLabelHandler(printer, a.log),
				Barcodes: handlers.NewBarcodeHandler(a.BarcodeService()),
				Scans:    handlers.NewScanHandler(services.NewScanService(catalog, a.log), a.cfg.Scanner.ServerDecode, a.log),
				Products: handlers.NewProductHandler(products, catalog, a.log),
				Health:   handlers.NewHealthHandler(monitor, tracker, catalog, state, version),
			}, routes.Options{
				APIKeyHash: a.cfg.Server.APIKeyHash,
				Monitor:    monitor,
				Errors:     tracker,
				Logger:     a.log,
			})

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signalContext()
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.LogSystemEvent("Server starting", map[string]interface{}{"addr": addr})
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.log.LogSystemEvent("Server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newPrintCommand(a *app) *cobra.Command {
	var quantity int
	cmd := &cobra.Command{
		Use:   "print <identifier>",
		Short: "Print barcode labels for a product identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := a.Printer()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			result := printer.PrintLabels(ctx, args[0], quantity)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Message)
			if result.DocumentPath != "" {
				fmt.Fprintf(out, "Document: %s\n", result.DocumentPath)
			}
			if !result.Success {
				return fmt.Errorf("print job %s failed", result.JobID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "number of labels")
	return cmd
}

func newResolveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <code>",
		Short: "Find the product a scanned code belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.Catalog()
			if err != nil {
				return err
			}
			product, err := services.NewScanService(catalog, a.log).ResolveScan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if product == nil {
				return fmt.Errorf("no product matches %q", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), product)
		},
	}
}

func newRenderCommand(a *app) *cobra.Command {
	var (
		format   string
		output   string
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "render <identifier>",
		Short: "Render a barcode as SVG, PNG, product QR or TSPL commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := render(a, args[0], format, quantity)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0644)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "svg, png, qr or tspl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "labels in the TSPL job")
	return cmd
}

func render(a *app, identifier, format string, quantity int) ([]byte, error) {
	svc := a.BarcodeService()
	switch strings.ToLower(format) {
	case "svg":
		p, err := svc.GenerateSVG(identifier)
		if err != nil {
			return nil, err
		}
		return p.Data, nil
	case "png":
		p, err := svc.GeneratePNG(identifier)
		if err != nil {
			return nil, err
		}
		return p.Data, nil
	case "qr":
		p, err := svc.GenerateProductQR(identifier, 256)
		if err != nil {
			return nil, err
		}
		return p.Data, nil
	case "tspl":
		cfg := a.cfg.LabelSettings()
		sheets, err := label.NewEngine(cfg).Layout(ean.Encode(identifier), quantity, a.cfg.Label.PerRow, a.cfg.Label.PerSheet)
		if err != nil {
			return nil, err
		}
		return label.NewEncoder(cfg).Encode(sheets)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func newPortsCommand(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports for printers and scanners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := device.ListPorts()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.IsUSB {
					fmt.Fprintf(out, "%s\tUSB %s:%s\t%s\n", p.Name, p.VID, p.PID, p.Product)
				} else {
					fmt.Fprintln(out, p.Name)
				}
			}
			return nil
		},
	}
}

func newScanCommand(a *app) *cobra.Command {
	var (
		port   string
		deduct bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read a serial barcode scanner and resolve each code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = a.cfg.Scanner.Port
			}
			if !cmd.Flags().Changed("deduct") {
				deduct = a.cfg.Scanner.Deduct
			}

			catalog, err := a.Catalog()
			if err != nil {
				return err
			}
			svc := services.NewScanService(catalog, a.log)
			listener := scan.NewListener(scan.ListenerConfig{
				Port:     port,
				BaudRate: a.cfg.Scanner.BaudRate,
				Cooldown: a.cfg.Scanner.Cooldown(),
			}, a.log)

			ctx, stop := signalContext()
			defer stop()

			readings := make(chan scan.Reading)
			errCh := make(chan error, 1)
			go func() {
				errCh <- listener.Run(ctx, readings)
				close(readings)
			}()

			out := cmd.OutOrStdout()
			for r := range readings {
				if deduct {
					outcome, err := svc.DeductScan(ctx, r.Code)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%s\t%s\n", r.Code, outcome.Status, outcome.Message)
					continue
				}
				product, err := svc.ResolveScan(ctx, r.Code)
				if err != nil {
					return err
				}
				if product == nil {
					fmt.Fprintf(out, "%s\tnot found\n", r.Code)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%d in stock\n", r.Code, product.Identifier, product.Name, product.Quantity)
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "scanner serial port (default from config)")
	cmd.Flags().BoolVar(&deduct, "deduct", false, "take one unit out of stock per scan")
	return cmd
}

func newVerifyOrderCommand(a *app) *cobra.Command {
	var lines []string
	cmd := &cobra.Command{
		Use:   "verify-order",
		Short: "Check picked items against an order, one scanned code per input line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			order, err := parseOrderLines(lines)
			if err != nil {
				return err
			}
			catalog, err := a.Catalog()
			if err != nil {
				return err
			}
			products, err := catalog.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			return verifyOrder(cmd.InOrStdin(), cmd.OutOrStdout(), scan.NewOrderSession(order), products)
		},
	}
	cmd.Flags().StringArrayVarP(&lines, "line", "l", nil, "order line as IDENTIFIER=QTY (repeatable)")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}

func parseOrderLines(lines []string) ([]scan.OrderLine, error) {
	order := make([]scan.OrderLine, 0, len(lines))
	for _, line := range lines {
		id, qty, ok := strings.Cut(line, "=")
		n, err := strconv.Atoi(qty)
		if !ok || id == "" || err != nil || n < 1 {
			return nil, fmt.Errorf("invalid order line %q, want IDENTIFIER=QTY", line)
		}
		order = append(order, scan.OrderLine{Identifier: id, Needed: n})
	}
	return order, nil
}

func verifyOrder(in io.Reader, out io.Writer, session *scan.OrderSession, products []models.Product) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		code := scan.ParseLine(scanner.Text())
		if code == "" {
			continue
		}
		product, ok := scan.Resolve(code, products)
		if !ok {
			fmt.Fprintf(out, "%s\tProduct not found\n", code)
			continue
		}
		res := session.Scan(product)
		fmt.Fprintf(out, "%s\t%s\t%s\n", code, res.Status, res.Message)
		if session.Complete() {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	scanned, needed := session.Totals()
	fmt.Fprintf(out, "Picked %d of %d\n", scanned, needed)
	if !session.Complete() {
		return errors.New("order incomplete")
	}
	return nil
}

func newHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash to put in server.api_key_hash",
		Args:  cobra.ExactArgs(1),
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		PersistentPostRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
