package server

import (
	"fmt"
	"net/http"
)

// handleTrackerJS serves the browser tracker script
func (s *Server) handleTrackerJS(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(GenerateTrackerScript(serverURL)))
}

// GenerateTrackerScript generates zl.js for the given server URL. The script
// reads its page view id and ping interval from its own data attributes,
// reports scroll position, liveness and unload for that page view, forwards clicks on
// [data-zl-event] elements, and submits the waitlist form.
func GenerateTrackerScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';
  var me=document.currentScript;
  var pv=me&&me.dataset.pv;

  function post(path,body,unloading){
    var data=JSON.stringify(body);
    if(unloading&&navigator.sendBeacon){
      navigator.sendBeacon(S+path,new Blob([data],{type:'application/json'}));
      return;
    }
    fetch(S+path,{method:'POST',credentials:'include',keepalive:true,
      headers:{'Content-Type':'application/json'},body:data}).catch(function(){});
  }

  function track(name,props){
    post('/api/events',{name:name,properties:props||{}});
  }
  window.zl={track:track};

  // Engagement beacons for this page view
  if(pv){
    var pending=false;
    window.addEventListener('scroll',function(){
      if(pending)return;
      pending=true;
      setTimeout(function(){
        pending=false;
        var d=document.documentElement;
        post('/b',{pv:pv,e:'scroll',y:window.scrollY,h:d.scrollHeight,vh:window.innerHeight});
      },250);
    },{passive:true});

    // Dwell is only measured while pings arrive, so ping at the server's
    // check interval whenever the page is visible.
    var every=Number(me.dataset.ping)||5000;
    function alive(){
      if(document.visibilityState==='visible')post('/b',{pv:pv,e:'ping'});
    }
    alive();
    var ping=setInterval(alive,every);
    document.addEventListener('visibilitychange',alive);

    var gone=false;
    window.addEventListener('pagehide',function(){
      if(gone)return;
      gone=true;
      clearInterval(ping);
      post('/b',{pv:pv,e:'exit'},true);
    });
  }

  track('device_info',{
    screen_width:screen.width,screen_height:screen.height,
    viewport_width:window.innerWidth,viewport_height:window.innerHeight
  });

  // Declarative interaction events
  document.addEventListener('click',function(ev){
    var el=ev.target.closest&&ev.target.closest('[data-zl-event]');
    if(!el)return;
    var ds=el.dataset,props={label:ds.zlLabel};
    if(ds.zlValue)props.value=Number(ds.zlValue);
    if(ds.zlPurpose)props.purpose=ds.zlPurpose;
    if(ds.zlTheme)props.theme=ds.zlTheme;
    ds.zlEvent.split(' ').forEach(function(n){if(n)track(n,props);});
  });

  // Waitlist form
  var form=document.getElementById('waitlist');
  if(form){
    form.addEventListener('submit',function(ev){
      ev.preventDefault();
      var fd=new FormData(form);
      fetch(S+'/api/waitlist',{method:'POST',credentials:'include',
        headers:{'Content-Type':'application/json'},
        body:JSON.stringify({email:fd.get('email'),contact:fd.get('contact')||'',
          style:form.dataset.style,timestamp:new Date().toISOString()})
      }).then(function(r){return r.json();}).then(function(j){
        var out=document.getElementById('waitlist-result');
        out.hidden=false;
        out.textContent=j.success?'You are number '+j.data.position+' on the list.':(j.error||'Something went wrong.');
      }).catch(function(){});
    });
  }
})();
`, serverURL)
}
