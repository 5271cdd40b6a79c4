package llm

import (
	"testing"
	"time"
)

const (
	testLocalURL  = "http://localhost:11434/v1"
	testRemoteURL = "https://ollama.com/v1"
)

func newTestRouter() *Router {
	return NewRouter(testLocalURL, testRemoteURL, "cloud", "mistral-large-3:675b-cloud", time.Minute)
}

func TestRouteLocalModel(t *testing.T) {
	r := newTestRouter()
	route := r.Route("llama3.2:3b")
	if route.Kind != EndpointLocal {
		t.Errorf("expected local endpoint, got %s", route.Kind)
	}
	if route.BaseURL != testLocalURL {
		t.Errorf("unexpected base url: %s", route.BaseURL)
	}
	if route.ModelName != "llama3.2:3b" {
		t.Errorf("model name rewritten: %s", route.ModelName)
	}
}

func TestRouteRemoteModel(t *testing.T) {
	r := newTestRouter()
	for _, name := range []string{
		"mistral-large-3:675b-cloud",
		"qwen3:480b-cloud",
		"cloud-experimental",
	} {
		route := r.Route(name)
		if route.Kind != EndpointRemote {
			t.Errorf("%s: expected remote endpoint, got %s", name, route.Kind)
		}
		if route.BaseURL != testRemoteURL {
			t.Errorf("%s: unexpected base url: %s", name, route.BaseURL)
		}
	}
}

func TestRouteEmptyModelFallsBackToDefault(t *testing.T) {
	r := newTestRouter()
	route := r.Route("  ")
	if route.ModelName != "mistral-large-3:675b-cloud" {
		t.Errorf("expected default model, got %s", route.ModelName)
	}
	// 默认模型名本身带 cloud 后缀，应当路由到云端
	if route.Kind != EndpointRemote {
		t.Errorf("expected remote endpoint for default model, got %s", route.Kind)
	}
}

func TestRouteMarkerIsSubstringMatch(t *testing.T) {
	r := newTestRouter()
	if got := r.Route("claudless:7b").Kind; got != EndpointLocal {
		t.Errorf("model without marker routed %s", got)
	}
	// marker 出现在任意位置都算
	if got := r.Route("mycloudmodel").Kind; got != EndpointRemote {
		t.Errorf("model with embedded marker routed %s", got)
	}
}

func TestRouteDeterministic(t *testing.T) {
	r := newTestRouter()
	a := r.Route("gemma3:12b")
	b := r.Route("gemma3:12b")
	if a != b {
		t.Errorf("same model produced different routes: %+v vs %+v", a, b)
	}
}

func TestNewRouterDefaults(t *testing.T) {
	r := NewRouter(testLocalURL, testRemoteURL, "", "m", 0)
	route := r.Route("foo-cloud")
	if route.Kind != EndpointRemote {
		t.Errorf("empty marker should default to cloud, got %s", route.Kind)
	}
	if route.Timeout <= 0 {
		t.Errorf("timeout not defaulted: %v", route.Timeout)
	}
}
