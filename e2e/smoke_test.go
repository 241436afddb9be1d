//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	repoRootRel = ".."           // relative to ./e2e
	mainPkgRel  = "./cmd/server" // main.go lives in cmd/server/

	influxOrg    = "sen66"
	influxBucket = "sensors"
	influxToken  = "e2e-admin-token"
)

func TestSmoke(t *testing.T) {
	repoRoot := repoRootPath(t)
	influxURL := startInflux(t)
	broker, brokerPort := startMosquitto(t)

	writePoint(t, influxURL, influxdb2.NewPoint("environment", nil, map[string]any{
		"pm1_0": 4.0, "pm2_5": 75.0, "pm4_0": 80.0, "pm10": 90.0,
		"co2": 1400.0, "voc": 150.0, "nox": 20.0,
	}, time.Now().Add(-2*time.Minute)))

	lamp := subscribeLamp(t, broker, brokerPort, "sen66/e2e/iaq")

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"DB_DRIVER=sqlite3",
		"SQLITE_PATH="+filepath.Join(t.TempDir(), "app.db"),
		"INFLUX_URL="+influxURL,
		"INFLUX_ORG="+influxOrg,
		"INFLUX_BUCKET="+influxBucket,
		"INFLUX_TOKEN="+influxToken,
		"STATION_ID=e2e",
		"MQTT_BROKER="+broker,
		fmt.Sprintf("MQTT_PORT=%d", brokerPort),
		"MQTT_PUBLISH_INTERVAL=1s",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 20 * time.Second}
	waitForOK(t, client, "http://"+addr+"/healthz", 10*time.Second)

	var iaq map[string]any
	getJSON(t, client, "http://"+addr+"/api/v1/iaq", &iaq)
	if iaq["label"] != "PM2.5" || iaq["score"] != 90.0 || iaq["leds"] != 11.0 {
		t.Fatalf("iaq = %v", iaq)
	}

	var indices map[string]any
	getJSON(t, client, "http://"+addr+"/api/v1/indices", &indices)
	if indices["co2_index"] != 70.0 || indices["voc_index"] != 35.0 {
		t.Fatalf("indices = %v", indices)
	}

	var pmx map[string]any
	getJSON(t, client, "http://"+addr+"/api/v1/pmx", &pmx)
	if pmx["pmx"] == nil || pmx["dominant"] == nil {
		t.Fatalf("pmx = %v", pmx)
	}

	select {
	case msg := <-lamp:
		var body map[string]any
		if err := json.Unmarshal(msg, &body); err != nil {
			t.Fatalf("lamp payload: %v", err)
		}
		if body["label"] != "PM2.5" || body["leds"] != 11.0 {
			t.Fatalf("lamp = %v", body)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("no lamp message received")
	}

	stopServer(t, cmd)
}

func startInflux(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	port := nat.Port("8086/tcp")
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort(port).WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start influxdb container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("influx host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("influx port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, mapped.Port())
}

func startMosquitto(t *testing.T) (string, int) {
	t.Helper()
	ctx := context.Background()

	port := nat.Port("1883/tcp")
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{string(port)},
		WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(30 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("mosquitto host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("mosquitto port: %v", err)
	}
	return host, mapped.Int()
}

func writePoint(t *testing.T, influxURL string, points ...*write.Point) {
	t.Helper()
	client := influxdb2.NewClient(influxURL, influxToken)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.WriteAPIBlocking(influxOrg, influxBucket).WritePoint(ctx, points...); err != nil {
		t.Fatalf("write points: %v", err)
	}
}

func subscribeLamp(t *testing.T, host string, port int, topic string) <-chan []byte {
	t.Helper()
	out := make(chan []byte, 16)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", host, port))
	opts.SetClientID("e2e-" + uuid.NewString()[:8])
	client := mqtt.NewClient(opts)

	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("mqtt connect: %v", token.Error())
	}
	t.Cleanup(func() { client.Disconnect(250) })

	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case out <- msg.Payload():
		default:
		}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("mqtt subscribe: %v", token.Error())
	}
	return out
}

func getJSON(t *testing.T, client *http.Client, url string, out any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status=%d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "sen66-server")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
