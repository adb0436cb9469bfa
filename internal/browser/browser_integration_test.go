//go:build integration
package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autoeval/internal/browser"
	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/pacing"
	"autoeval/internal/sequencer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evaluationPage mimics the grid + item table of the real page: clicking a
// grid row renders its items, saving marks the row done and raises a dialog.
const evaluationPage = `<html><body>
<table id="tempGrid"><tbody>
  <tr class="jqgrow" id="r1"><td aria-describedby="tempGrid_jzgmc">Wang</td><td aria-describedby="tempGrid_kcmc">Physics</td><td aria-describedby="tempGrid_tjztmc">未评</td></tr>
  <tr class="jqgrow" id="r2"><td aria-describedby="tempGrid_jzgmc">Li</td><td aria-describedby="tempGrid_kcmc">History</td><td aria-describedby="tempGrid_tjztmc">未评</td></tr>
</tbody></table>
<table><tbody id="items"></tbody></table>
<div id="pyDiv"><textarea></textarea></div>
<button id="btn_xspj_bc">save</button>
<button id="btn_xspj_tj">submit</button>
<div id="dlg" style="display:none"><button id="btn_ok">ok</button></div>
<script>
window.saved = [];
var active = null;
document.querySelectorAll('#tempGrid tr.jqgrow').forEach(function (row) {
  row.addEventListener('click', function () {
    active = row;
    var body = document.getElementById('items');
    body.innerHTML = '';
    document.querySelector('#pyDiv textarea').value = '';
    setTimeout(function () {
      for (var i = 1; i <= 4; i++) {
        body.insertAdjacentHTML('beforeend',
          '<tr class="tr-xspj"><td>Item ' + i + '</td><td>' +
          '<input type="radio" class="radio-pjf" data-sfzd="1" name="q' + i + '">' +
          '<input type="radio" class="radio-pjf" data-sfzd="0" name="q' + i + '"></td></tr>');
      }
    }, 50);
  });
});
document.getElementById('btn_xspj_bc').addEventListener('click', function () {
  window.saved.push({
    row: active ? active.id : '',
    primary: document.querySelectorAll('input[data-sfzd="1"]:checked').length,
    secondary: document.querySelectorAll('input[data-sfzd="0"]:checked').length,
    comment: document.querySelector('#pyDiv textarea').value
  });
  if (active) active.querySelector('[aria-describedby="tempGrid_tjztmc"]').textContent = '已评';
  document.getElementById('dlg').style.display = 'block';
});
document.getElementById('btn_ok').addEventListener('click', function () {
  document.getElementById('dlg').style.display = 'none';
});
</script>
</body></html>`

func TestMultiEntityRun_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, evaluationPage)
	}))
	defer ts.Close()

	bcfg := config.DefaultBrowserConfig()
	bcfg.Headless = true
	bcfg.ControlURLFile = ""
	bcfg.UserDataDir = t.TempDir()
	bcfg.Pointer = config.PointerConfig{}

	m := browser.NewManager(bcfg)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	defer func() {
		if err := m.Shutdown(context.Background()); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	}()

	require.NoError(t, m.Start(ctx), "Failed to start browser")
	page, err := m.OpenPage(ctx, ts.URL)
	require.NoError(t, err)

	rng := pacing.NewSource(3)
	fe := browser.NewFrontend(page, bcfg, config.DefaultSelectors(), rng)

	acfg := config.DefaultAutomationConfig()
	acfg.Delay = config.DurationRange{Min: 5 * time.Millisecond, Max: 10 * time.Millisecond}
	acfg.ThinkPause.Probability = 0
	acfg.SecondaryQuota = config.IntRange{Min: 1, Max: 1}
	acfg.SaveRetryDelay = 200 * time.Millisecond
	acfg.SaveSettle = 100 * time.Millisecond
	acfg.DialogSettle = 50 * time.Millisecond
	acfg.SwitchSettle = config.DurationRange{Min: 50 * time.Millisecond, Max: 50 * time.Millisecond}
	acfg.Readiness = config.ReadinessConfig{PollInterval: 50 * time.Millisecond, MaxAttempts: 20}
	acfg.InterEntityDelay = 50 * time.Millisecond

	e, err := sequencer.New(fe, acfg, sequencer.Options{Rand: rng})
	require.NoError(t, err)

	sum, err := e.Run(ctx, sequencer.ModeMulti)
	require.NoError(t, err)
	assert.Equal(t, control.StateCompleted, sum.Outcome)
	require.Len(t, sum.Entities, 2)
	assert.Equal(t, "Wang - Physics", sum.Entities[0].Entity.Label)
	assert.Equal(t, "Li - History", sum.Entities[1].Entity.Label)
	for _, res := range sum.Entities {
		assert.Equal(t, 4, res.Items)
		assert.Equal(t, 4, res.Set)
		assert.Equal(t, 1, res.Secondary)
		assert.True(t, res.Commented)
		assert.Empty(t, res.Missing)
	}

	obj, err := page.Eval(`() => window.saved.length`)
	require.NoError(t, err)
	assert.Equal(t, 4, obj.Value.Int(), "two saves per entity")

	last, err := page.Eval(`() => window.saved[window.saved.length - 1]`)
	require.NoError(t, err)
	assert.Equal(t, "r2", last.Value.Get("row").Str())
	assert.Equal(t, 3, last.Value.Get("primary").Int())
	assert.Equal(t, 1, last.Value.Get("secondary").Int())
	assert.Contains(t, acfg.TextPool, last.Value.Get("comment").Str())

	present, err := fe.IsDialogPresent(ctx)
	require.NoError(t, err)
	assert.False(t, present, "dialog left open")
}
