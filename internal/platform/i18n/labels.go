package i18n

var forms = table{
	"tablet":      {"ar": "أقراص", "fr": "Comprimé", "en": "Tablet"},
	"capsule":     {"ar": "كبسولات", "fr": "Capsule", "en": "Capsule"},
	"syrup":       {"ar": "شراب", "fr": "Sirop", "en": "Syrup"},
	"injection":   {"ar": "حقنة", "fr": "Injection", "en": "Injection"},
	"cream":       {"ar": "كريم", "fr": "Crème", "en": "Cream"},
	"drops":       {"ar": "قطرات", "fr": "Gouttes", "en": "Drops"},
	"suppository": {"ar": "تحاميل", "fr": "Suppositoire", "en": "Suppository"},
	"inhaler":     {"ar": "بخاخ", "fr": "Inhalateur", "en": "Inhaler"},
}

var frequencies = table{
	"once_daily":   {"ar": "مرة واحدة يومياً", "fr": "Une fois par jour", "en": "Once daily"},
	"twice_daily":  {"ar": "مرتين يومياً", "fr": "Deux fois par jour", "en": "Twice daily"},
	"three_times":  {"ar": "ثلاث مرات يومياً", "fr": "Trois fois par jour", "en": "Three times daily"},
	"four_times":   {"ar": "أربع مرات يومياً", "fr": "Quatre fois par jour", "en": "Four times daily"},
	"before_meals": {"ar": "قبل الوجبات", "fr": "Avant les repas", "en": "Before meals"},
	"after_meals":  {"ar": "بعد الوجبات", "fr": "Après les repas", "en": "After meals"},
	"as_needed":    {"ar": "عند الحاجة", "fr": "Au besoin", "en": "As needed"},
}

var actions = table{
	"create": {"ar": "إنشاء", "fr": "Créer", "en": "Create"},
	"update": {"ar": "تعديل", "fr": "Modifier", "en": "Update"},
	"delete": {"ar": "حذف", "fr": "Supprimer", "en": "Delete"},
	"login":  {"ar": "تسجيل دخول", "fr": "Connexion", "en": "Login"},
	"logout": {"ar": "تسجيل خروج", "fr": "Déconnexion", "en": "Logout"},
	"export": {"ar": "تصدير", "fr": "Exporter", "en": "Export"},
	"print":  {"ar": "طباعة", "fr": "Imprimer", "en": "Print"},
}

var entities = table{
	"patient":      {"ar": "مريض", "fr": "Patient", "en": "Patient"},
	"prescription": {"ar": "وصفة", "fr": "Ordonnance", "en": "Prescription"},
	"template":     {"ar": "قالب", "fr": "Modèle", "en": "Template"},
	"user":         {"ar": "مستخدم", "fr": "Utilisateur", "en": "User"},
	"settings":     {"ar": "الإعدادات", "fr": "Paramètres", "en": "Settings"},
}

var roles = table{
	"super_admin":  {"ar": "مدير النظام", "fr": "Super Admin", "en": "Super Admin"},
	"clinic_admin": {"ar": "مدير العيادة", "fr": "Admin Clinique", "en": "Clinic Admin"},
	"doctor":       {"ar": "طبيب", "fr": "Médecin", "en": "Doctor"},
	"assistant":    {"ar": "مساعد", "fr": "Assistant", "en": "Assistant"},
}

// texts holds free-form messages. Entries with verbs are fmt templates.
var texts = table{
	// prescription document
	"doc.title":         {"ar": "وصفة طبية", "fr": "Ordonnance", "en": "Prescription"},
	"doc.doctor_prefix": {"ar": "د.", "fr": "Dr.", "en": "Dr."},
	"doc.license":       {"ar": "رقم الترخيص", "fr": "N° de licence", "en": "License number"},
	"doc.patient":       {"ar": "المريض", "fr": "Patient", "en": "Patient"},
	"doc.date_of_birth": {"ar": "تاريخ الميلاد", "fr": "Date de naissance", "en": "Date of birth"},
	"doc.medications":   {"ar": "الأدوية", "fr": "Médicaments", "en": "Medications"},
	"doc.col_number":    {"ar": "#", "fr": "#", "en": "#"},
	"doc.col_name":      {"ar": "الدواء", "fr": "Médicament", "en": "Medication"},
	"doc.col_dosage":    {"ar": "الجرعة", "fr": "Dosage", "en": "Dosage"},
	"doc.col_form":      {"ar": "الشكل", "fr": "Forme", "en": "Form"},
	"doc.col_frequency": {"ar": "التكرار", "fr": "Fréquence", "en": "Frequency"},
	"doc.col_duration":  {"ar": "المدة", "fr": "Durée", "en": "Duration"},
	"doc.notes":         {"ar": "ملاحظات", "fr": "Notes", "en": "Notes"},
	"doc.signature":     {"ar": "التوقيع والختم", "fr": "Signature et cachet", "en": "Signature and stamp"},

	// prescription email
	"mail.subject":        {"ar": "وصفة طبية - %s", "fr": "Ordonnance médicale - %s", "en": "Medical Prescription - %s"},
	"mail.greeting":       {"ar": "مرحباً", "fr": "Bonjour", "en": "Hello"},
	"mail.message":        {"ar": "تجد أدناه الوصفة الطبية الصادرة من %s في %s بتاريخ %s", "fr": "Veuillez trouver ci-dessous l'ordonnance médicale émise par %s à %s en date du %s", "en": "Please find below the medical prescription issued by %s at %s on %s"},
	"mail.medications":    {"ar": "الأدوية الموصوفة:", "fr": "Médicaments prescrits:", "en": "Prescribed medications:"},
	"mail.footer":         {"ar": "يرجى اتباع التعليمات بدقة واستشارة الطبيب في حالة أي أسئلة.", "fr": "Veuillez suivre les instructions avec précision et consulter le médecin en cas de questions.", "en": "Please follow the instructions carefully and consult the doctor if you have any questions."},
	"mail.sent_via":       {"ar": "تم إرساله عبر", "fr": "Envoyé via", "en": "Sent via"},
	"mail.rights":         {"ar": "جميع الحقوق محفوظة", "fr": "Tous droits réservés", "en": "All rights reserved"},
	"mail.reset_subject":  {"ar": "إعادة تعيين كلمة المرور", "fr": "Réinitialisation du mot de passe", "en": "Password reset"},
	"mail.reset_body":     {"ar": "استخدم هذا الرمز لإعادة تعيين كلمة المرور خلال ساعة واحدة: %s", "fr": "Utilisez ce code pour réinitialiser votre mot de passe dans l'heure : %s", "en": "Use this code to reset your password within one hour: %s"},
	"mail.invite_subject": {"ar": "دعوة للانضمام إلى %s", "fr": "Invitation à rejoindre %s", "en": "Invitation to join %s"},
	"mail.invite_body":    {"ar": "تمت إضافتك إلى %s. سجّل الدخول باستخدام بريدك الإلكتروني.", "fr": "Vous avez été ajouté(e) à %s. Connectez-vous avec votre adresse e-mail.", "en": "You have been added to %s. Sign in with your email address."},

	// subscription
	"subscription.trial_days_remaining":   {"ar": "تبقى %d أيام على انتهاء الفترة التجريبية", "fr": "Il reste %d jours d'essai", "en": "%d days remaining in trial"},
	"subscription.trial_expired":          {"ar": "انتهت الفترة التجريبية", "fr": "La période d'essai est terminée", "en": "Your trial has ended"},
	"subscription.subscription_expired":   {"ar": "الاشتراك منتهي", "fr": "Abonnement expiré", "en": "Subscription expired"},
	"subscription.subscription_suspended": {"ar": "الاشتراك معلق", "fr": "Abonnement suspendu", "en": "Subscription suspended"},

	// dashboard notifications
	"notify.trial_ending":                 {"ar": "الفترة التجريبية تنتهي قريباً", "fr": "Période d'essai se termine bientôt", "en": "Trial ending soon"},
	"notify.trial_ending_message":         {"ar": "تبقى %d أيام على انتهاء الفترة التجريبية", "fr": "Il reste %d jours d'essai", "en": "%d days remaining in trial"},
	"notify.subscription_expired":         {"ar": "الاشتراك منتهي", "fr": "Abonnement expiré", "en": "Subscription expired"},
	"notify.subscription_expired_message": {"ar": "يرجى تجديد اشتراكك للاستمرار في إنشاء الوصفات", "fr": "Veuillez renouveler votre abonnement pour continuer", "en": "Please renew your subscription to continue creating prescriptions"},
	"notify.new_patients":                 {"ar": "مرضى جدد اليوم", "fr": "Nouveaux patients aujourd'hui", "en": "New patients today"},
	"notify.new_patients_message":         {"ar": "%d مريض جديد", "fr": "%d nouveau(x) patient(s)", "en": "%d new patient(s)"},
	"notify.prescriptions_today":          {"ar": "وصفات اليوم", "fr": "Prescriptions aujourd'hui", "en": "Prescriptions today"},
	"notify.prescriptions_today_message":  {"ar": "%d وصفة", "fr": "%d prescription(s)", "en": "%d prescription(s)"},
	"notify.welcome":                      {"ar": "مرحباً بك في WASFA PRO", "fr": "Bienvenue sur WASFA PRO", "en": "Welcome to WASFA PRO"},
	"notify.welcome_message":              {"ar": "ابدأ بإضافة معلومات العيادة والمرضى", "fr": "Commencez par ajouter les informations de la clinique et des patients", "en": "Start by adding clinic and patient information"},

	"common.system":  {"ar": "النظام", "fr": "Système", "en": "System"},
	"gender.male":    {"ar": "ذكر", "fr": "Homme", "en": "Male"},
	"gender.female":  {"ar": "أنثى", "fr": "Femme", "en": "Female"},
	"gender.unknown": {"ar": "غير محدد", "fr": "Non spécifié", "en": "Unspecified"},
}
