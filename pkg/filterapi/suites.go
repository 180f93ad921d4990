package filterapi

// Suite names and the versions this host provides.
const (
	SuiteHandle             = "Photoshop Handle Suite for Plug-ins"
	SuiteBuffer             = "Photoshop Buffer Suite for Plug-ins"
	SuiteActionDescriptor   = "df135115-c769-11d0-8079-00c04fd7ec47"
	SuiteActionList         = "df135116-c769-11d0-8079-00c04fd7ec47"
	SuiteActionReference    = "df135117-c769-11d0-8079-00c04fd7ec47"
	SuiteDescriptorRegistry = "61e608b0-40fd-11d1-8da3-00c04fd5f7ee"
	SuiteProperty           = "Photoshop Property Suite for Plug-ins"
	SuiteColorSpace         = "Photoshop ColorSpace Suite for Plug-ins"
	SuiteUIHooks            = "Photoshop UIHooks Suite for Plug-ins"
	SuiteError              = "Photoshop Error Suite for Plug-ins"
)

// SPBasicSuite is the root suite through which every other suite is acquired.
type SPBasicSuite struct {
	AcquireSuite    uintptr // SPErr (const char *name, int32 version, const void **suite)
	ReleaseSuite    uintptr // SPErr (const char *name, int32 version)
	IsEqual         uintptr // SPBoolean (const char *a, const char *b)
	AllocateBlock   uintptr // SPErr (size_t size, void **block)
	FreeBlock       uintptr // SPErr (void *block)
	ReallocateBlock uintptr // SPErr (void *block, size_t newSize, void **newblock)
	Undefined       uintptr // SPErr (void)
}

// HandleSuite1 is PSHandleSuite version 1.
type HandleSuite1 struct {
	New          uintptr // Handle (int32 size)
	Dispose      uintptr // void (Handle h)
	SetLock      uintptr // void (Handle h, Boolean lock, Ptr *address, Boolean *oldLock)
	GetSize      uintptr // int32 (Handle h)
	SetSize      uintptr // OSErr (Handle h, int32 newSize)
	RecoverSpace uintptr // void (int32 size)
}

// HandleSuite2 is PSHandleSuite version 2; it adds DisposeRegularHandle.
type HandleSuite2 struct {
	New                  uintptr
	Dispose              uintptr
	DisposeRegularHandle uintptr
	SetLock              uintptr
	GetSize              uintptr
	SetSize              uintptr
	RecoverSpace         uintptr
}

// BufferSuite1 is PSBufferSuite version 1. It hands out raw pointers.
type BufferSuite1 struct {
	New      uintptr // Ptr (uint32 *requestedSize, uint32 minimumSize)
	Dispose  uintptr // void (Ptr *buffer)
	GetSize  uintptr // uint32 (Ptr buffer)
	GetSpace uintptr // uint32 (void)
}

// PropertySuite1 mirrors PropertyProcs without the version header.
type PropertySuite1 struct {
	GetProperty uintptr
	SetProperty uintptr
}

// DescriptorRegistrySuite1 stores descriptors across invocations.
type DescriptorRegistrySuite1 struct {
	Register uintptr // SPErr (const char *key, PIActionDescriptor d, Boolean isPersistent)
	Erase    uintptr // SPErr (const char *key)
	Get      uintptr // SPErr (const char *key, PIActionDescriptor *d)
}

// ErrorSuite1 lets the plug-in set the error string reported with errReportString.
type ErrorSuite1 struct {
	SetErrorFromPString uintptr
	SetErrorFromCString uintptr
	SetErrorFromZString uintptr
}

// UIHooksSuite1 groups the UI helper callbacks.
type UIHooksSuite1 struct {
	ProcessEvent  uintptr
	DisplayPixels uintptr
	Progress      uintptr
	MainAppWindow uintptr
	SetCursor     uintptr
	TickCount     uintptr
	GetPluginName uintptr
}

// ColorSpaceSuite1 is the color conversion suite.
type ColorSpaceSuite1 struct {
	Make              uintptr // SPErr (ColorID *id)
	Delete            uintptr // SPErr (ColorID *id)
	StuffComponents   uintptr // SPErr (ColorID id, int16 space, uint8 c0, c1, c2, c3)
	ExtractComponents uintptr // SPErr (ColorID id, int16 space, uint8 *c0, *c1, *c2, *c3, Boolean *gamut)
	StuffXYZ          uintptr // SPErr (ColorID id, CS_XYZ xyz)
	ExtractXYZ        uintptr // SPErr (ColorID id, CS_XYZ *xyz)
	Convert8          uintptr // SPErr (int16 in, int16 out, Color8 *colors, int16 count)
	Convert16         uintptr // SPErr (int16 in, int16 out, Color16 *colors, int16 count)
	GetNativeSpace    uintptr // SPErr (ColorID id, int16 *space)
	IsBookColor       uintptr // SPErr (ColorID id, Boolean *isBook)
	ExtractColorName  uintptr // SPErr (ColorID id, ASZString *name)
	PickColor         uintptr // SPErr (ColorID *id, ASZString prompt)
	Convert8to16      uintptr // SPErr (int16 in, int16 out, Color8 *in, Color16 *out, int16 count)
	Convert16to8      uintptr // SPErr (int16 in, int16 out, Color16 *in, Color8 *out, int16 count)
}

// ActionDescriptorSuite2 is PSActionDescriptorProcs version 2.
type ActionDescriptorSuite2 struct {
	Make               uintptr
	Free               uintptr
	GetType            uintptr
	GetKey             uintptr
	HasKey             uintptr
	GetCount           uintptr
	IsEqual            uintptr
	Erase              uintptr
	Clear              uintptr
	PutInteger         uintptr
	PutFloat           uintptr
	PutUnitFloat       uintptr
	PutString          uintptr
	PutBoolean         uintptr
	PutList            uintptr
	PutObject          uintptr
	PutGlobalObject    uintptr
	PutEnumerated      uintptr
	PutReference       uintptr
	PutClass           uintptr
	PutGlobalClass     uintptr
	PutAlias           uintptr
	GetInteger         uintptr
	GetFloat           uintptr
	GetUnitFloat       uintptr
	GetStringLength    uintptr
	GetString          uintptr
	GetBoolean         uintptr
	GetList            uintptr
	GetObject          uintptr
	GetGlobalObject    uintptr
	GetEnumerated      uintptr
	GetReference       uintptr
	GetClass           uintptr
	GetGlobalClass     uintptr
	GetAlias           uintptr
	HasKeys            uintptr
	PutIntegers        uintptr
	GetIntegers        uintptr
	AsHandle           uintptr
	HandleToDescriptor uintptr
	PutZString         uintptr
	GetZString         uintptr
	PutData            uintptr
	GetDataLength      uintptr
	GetData            uintptr
}

// ActionListSuite1 is PSActionListProcs version 1.
type ActionListSuite1 struct {
	Make            uintptr
	Free            uintptr
	GetType         uintptr
	GetCount        uintptr
	PutInteger      uintptr
	PutFloat        uintptr
	PutUnitFloat    uintptr
	PutString       uintptr
	PutBoolean      uintptr
	PutList         uintptr
	PutObject       uintptr
	PutGlobalObject uintptr
	PutEnumerated   uintptr
	PutReference    uintptr
	PutClass        uintptr
	PutGlobalClass  uintptr
	PutAlias        uintptr
	GetInteger      uintptr
	GetFloat        uintptr
	GetUnitFloat    uintptr
	GetStringLength uintptr
	GetString       uintptr
	GetBoolean      uintptr
	GetList         uintptr
	GetObject       uintptr
	GetGlobalObject uintptr
	GetEnumerated   uintptr
	GetReference    uintptr
	GetClass        uintptr
	GetGlobalClass  uintptr
	GetAlias        uintptr
	PutIntegers     uintptr
	GetIntegers     uintptr
	PutData         uintptr
	GetDataLength   uintptr
	GetData         uintptr
	PutZString      uintptr
	GetZString      uintptr
}

// ActionReferenceSuite2 is PSActionReferenceProcs version 2.
type ActionReferenceSuite2 struct {
	Make            uintptr
	Free            uintptr
	GetForm         uintptr
	GetDesiredClass uintptr
	PutName         uintptr
	PutIndex        uintptr
	PutIdentifier   uintptr
	PutOffset       uintptr
	PutEnumerated   uintptr
	PutProperty     uintptr
	PutClass        uintptr
	GetNameLength   uintptr
	GetName         uintptr
	GetIndex        uintptr
	GetIdentifier   uintptr
	GetOffset       uintptr
	GetEnumerated   uintptr
	GetProperty     uintptr
	GetContainer    uintptr
}

// Property keys answered by the property callbacks.
var (
	PropNumberOfChannels  = MakeOSType("nuch")
	PropImageMode         = MakeOSType("mode")
	PropChannelName       = MakeOSType("nmch")
	PropSerialString      = MakeOSType("sstr")
	PropTitle             = MakeOSType("titl")
	PropBigNudgeH         = MakeOSType("bndH")
	PropBigNudgeV         = MakeOSType("bndV")
	PropInterpolation     = MakeOSType("intp")
	PropRulerUnits        = MakeOSType("rulr")
	PropWatchSuspension   = MakeOSType("wtch")
	PropCopyright         = MakeOSType("cpyr")
	PropURL               = MakeOSType("URL ")
	PropToolTips          = MakeOSType("tltp")
	PropHostVersion       = MakeOSType("hstV")
	PropDocumentID        = MakeOSType("dcID")
	PropPlayInfoSignature = MakeOSType("8BIM")
)
